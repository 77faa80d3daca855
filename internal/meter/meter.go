package meter

import (
	"context"
	"time"

	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/state"
)

// PollInterval is how often the counter is drained when no command
// arrives.
const PollInterval = 2 * time.Second

// State is the water meter status. The prev triple retains the pre-update
// values for UI delta display.
type State struct {
	PrevEdgesCount uint64
	PrevArmed      bool
	PrevLeaking    bool

	// EdgesCount is the total number of flow pulses observed since the
	// last arming cycle began.
	EdgesCount uint64

	// Armed means any flow is treated as a potential leak.
	Armed bool

	// Leaking means flow was observed while armed. Never true while
	// disarmed.
	Leaking bool
}

// Command arms or disarms the meter. Arming resets edge accounting.
type Command int

const (
	CommandArm Command = iota
	CommandDisarm
)

func (c Command) String() string {
	if c == CommandArm {
		return "ARM"
	}
	return "DISARM"
}

// Run polls the pulse counter, racing the next command against the poll
// timer. Either branch drains the counter's edge accumulator atomically
// and folds the drained delta into the meter state; the command branch
// additionally reconfigures the wake-on-edges threshold (1 when arming,
// 0 when disarming). Peripheral failures are fatal to the task.
func Run(ctx context.Context, after func(time.Duration) <-chan time.Time, counter Counter, commands *notify.Value[Command], st *state.Container[State], sinks ...func(State)) error {
	if err := counter.Start(); err != nil {
		return err
	}

	for {
		var delta CounterData
		armReset := false

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-commands.C():
			cmd, ok := commands.TryTake()
			if !ok {
				continue
			}

			data, err := counter.Data()
			if err != nil {
				return err
			}
			data.EdgesCount = 0
			if cmd == CommandArm {
				data.WakeupEdges = 1
				armReset = true
			} else {
				data.WakeupEdges = 0
			}
			delta, err = counter.SwapData(data)
			if err != nil {
				return err
			}
			// The swapped-out reading carries the edges observed since
			// the previous drain, but the threshold that matters for the
			// armed/leaking derivation is the one just installed.
			delta.WakeupEdges = data.WakeupEdges

		case <-after(PollInterval):
			data, err := counter.Data()
			if err != nil {
				return err
			}
			data.EdgesCount = 0
			delta, err = counter.SwapData(data)
			if err != nil {
				return err
			}
			delta.WakeupEdges = data.WakeupEdges
		}

		_, err := st.Update(func(old State) (State, error) {
			edges := old.EdgesCount + uint64(delta.EdgesCount)
			if armReset {
				// Arming starts a fresh accounting cycle.
				edges = 0
			}
			return State{
				PrevEdgesCount: old.EdgesCount,
				PrevArmed:      old.Armed,
				PrevLeaking:    old.Leaking,
				EdgesCount:     edges,
				Armed:          delta.WakeupEdges > 0,
				Leaking:        delta.EdgesCount > 0 && old.Armed && delta.WakeupEdges > 0,
			}, nil
		}, sinks...)
		if err != nil {
			log.Errorf("meter: state update: %v", err)
		}
	}
}
