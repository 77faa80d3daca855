// Package notify provides the two wake primitives the task loops are built
// on: a coalescing payload-less Signal and a single-slot latest-wins Value.
// Neither counts nor queues wakes — consumers always re-read authoritative
// state after waking instead of trusting the wake itself.
package notify

import "context"

// Signal is a coalescing wake-up. Any number of Notify calls while no one
// is waiting leave exactly one pending wake; a Notify preceding the first
// Wait is not lost.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates a Signal with no pending wake.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify makes a wake pending. Non-blocking; redundant notifications while
// a wake is already pending are dropped.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until a wake is pending, consumes it and returns nil.
// Returns the context error if ctx is done first.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C exposes the wake channel for use in select statements.
// A receive consumes the pending wake, exactly like Wait.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Drain discards a pending wake, if any.
func (s *Signal) Drain() {
	select {
	case <-s.ch:
	default:
	}
}
