// Package keepalive decides how long the device stays awake. On battery
// the device only runs for a short window after the last activity (button
// press, network command); external power suspends the countdown. When the
// countdown reaches zero the process is asked to quit, which leads back to
// deep sleep.
package keepalive

import (
	"context"
	"time"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/state"
)

// Timeout is how long the device stays awake on battery after the last
// activity.
const Timeout = 20 * time.Second

// TickInterval is the countdown granularity.
const TickInterval = time.Second

// RemainingTime is the published countdown state.
type RemainingTime struct {
	// Indefinite means external power is present and no countdown runs.
	Indefinite bool

	// Left is the remaining awake time. Zero when Indefinite.
	Left time.Duration
}

// Run maintains the countdown, racing activity against the tick timer.
// Activity or external power restarts the countdown; at zero, quit is
// invoked and the task returns.
func Run(ctx context.Context, after func(time.Duration) <-chan time.Time, now func() time.Duration, activity *notify.Signal, bst *state.Container[battery.State], st *state.Container[RemainingTime], quit func(), sinks ...func(RemainingTime)) error {
	last := now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-activity.C():
			last = now()
		case <-after(TickInterval):
		}

		var rt RemainingTime
		if bst.Get().Powered {
			rt = RemainingTime{Indefinite: true}
			// The countdown restarts from full once power drops.
			last = now()
		} else {
			left := Timeout - (now() - last)
			if left < 0 {
				left = 0
			}
			rt = RemainingTime{Left: left.Truncate(TickInterval)}
		}

		if _, err := st.Update(func(RemainingTime) (RemainingTime, error) { return rt, nil }, sinks...); err != nil {
			log.Errorf("keepalive: state update: %v", err)
		}

		if !rt.Indefinite && rt.Left == 0 {
			log.Infof("keepalive: no activity for %v, requesting shutdown", Timeout)
			quit()
			return nil
		}
	}
}
