// Package button turns the raw edge stream of a front-panel button into
// debounced press notifications.
package button

import (
	"context"
	"time"

	"github.com/sweeney/water-guard/internal/notify"
)

// DebounceDuration is the window during which further raw edges after a
// press are contact bounce, not new presses.
const DebounceDuration = 50 * time.Millisecond

// Run forwards at most one press per debounce window from the raw edge
// signal into every pressed signal. The first raw edge is reported
// immediately so the UI stays snappy; edges arriving inside the window
// are discarded.
func Run(ctx context.Context, after func(time.Duration) <-chan time.Time, raw *notify.Signal, pressed ...*notify.Signal) error {
	for {
		if err := raw.Wait(ctx); err != nil {
			return err
		}

		for _, p := range pressed {
			p.Notify()
		}

		// Sit out the bounce, then discard whatever edges it produced.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-after(DebounceDuration):
		}
		raw.Drain()
	}
}
