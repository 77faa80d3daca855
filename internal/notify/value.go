package notify

import (
	"context"
	"sync"
)

// Value is a single-slot mailbox with latest-wins semantics: Set overwrites
// whatever is in the slot and leaves a pending wake, Take consumes the slot.
// Used for command delivery and for forwarding committed state to consumers
// that only ever care about the most recent value.
type Value[T any] struct {
	sig *Signal

	mu  sync.Mutex
	v   T
	set bool
}

// NewValue creates an empty Value.
func NewValue[T any]() *Value[T] {
	return &Value[T]{sig: NewSignal()}
}

// Set stores v as the current slot content, replacing any value not yet
// taken, and makes a wake pending. Never blocks.
func (val *Value[T]) Set(v T) {
	val.mu.Lock()
	val.v = v
	val.set = true
	val.mu.Unlock()
	val.sig.Notify()
}

// Take blocks until a value is available, then removes and returns it.
func (val *Value[T]) Take(ctx context.Context) (T, error) {
	for {
		if v, ok := val.TryTake(); ok {
			return v, nil
		}
		if err := val.sig.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
}

// TryTake removes and returns the slot content if one is present.
func (val *Value[T]) TryTake() (T, bool) {
	val.mu.Lock()
	defer val.mu.Unlock()
	if !val.set {
		var zero T
		return zero, false
	}
	v := val.v
	var zero T
	val.v = zero
	val.set = false
	return v, true
}

// C exposes the wake channel for multi-way select loops. After a receive
// the caller must still TryTake — the slot may have been consumed by a
// competing taker, in which case the loop simply goes around again.
func (val *Value[T]) C() <-chan struct{} {
	return val.sig.C()
}

// Sink returns a function that feeds values into the mailbox. Handy as a
// state container propagation target.
func (val *Value[T]) Sink() func(T) {
	return val.Set
}
