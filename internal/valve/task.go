package valve

import (
	"context"
	"time"

	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/state"
)

// RunControl accepts valve commands, publishes the transient state
// (Opening/Closing), forwards the command to the spin task, and publishes
// the resting state (Open/Closed) once the spin task reports the turn
// finished. Returns on context cancellation.
func RunControl(ctx context.Context, commands *notify.Value[Command], spin *notify.Value[SpinCommand], spinDone *notify.Signal, st *state.Container[State], sinks ...func(State)) error {
	var inFlight Command
	spinning := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-commands.C():
			cmd, ok := commands.TryTake()
			if !ok {
				continue
			}
			inFlight = cmd
			spinning = true

			transient := StateOpening
			if cmd == CommandClose {
				transient = StateClosing
			}
			if _, err := st.Update(func(State) (State, error) { return transient, nil }, sinks...); err != nil {
				log.Errorf("valve: state update: %v", err)
			}

			if cmd == CommandOpen {
				spin.Set(SpinOpen)
			} else {
				spin.Set(SpinClose)
			}

		case <-spinDone.C():
			if !spinning {
				continue
			}
			spinning = false

			resting := StateOpen
			if inFlight == CommandClose {
				resting = StateClosed
			}
			if _, err := st.Update(func(State) (State, error) { return resting, nil }, sinks...); err != nil {
				log.Errorf("valve: state update: %v", err)
			}
		}
	}
}

// RunSpin owns the actuator pins and the rated-turn one-shot timer. Each
// incoming spin command drives the pins and re-arms the timer, so a newer
// command mid-spin restarts the turn; on expiry the motor is de-energized
// and the finish is signalled. Pin failures are fatal to the task — the
// recovery model on this device is a process restart, not an in-loop retry.
func RunSpin(ctx context.Context, after func(time.Duration) <-chan time.Time, pins Pins, spin *notify.Value[SpinCommand], done *notify.Signal) error {
	// Leaving the loop for any reason must not leave the motor energized.
	defer Spin(pins, SpinStop)

	var expiry <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-spin.C():
			cmd, ok := spin.TryTake()
			if !ok {
				continue
			}
			if err := Spin(pins, cmd); err != nil {
				return err
			}
			if cmd == SpinStop {
				expiry = nil
			} else {
				expiry = after(TurnDuration)
			}

		case <-expiry:
			expiry = nil
			if err := Spin(pins, SpinStop); err != nil {
				return err
			}
			done.Notify()
		}
	}
}
