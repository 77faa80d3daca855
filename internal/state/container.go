// Package state provides the change-gated container every subsystem
// publishes through. A container holds one comparable value; mutations go
// through a single update function under an exclusive section, and
// downstream sinks observe a value exactly when it differs from the
// previously committed one. Periodic polling loops that re-derive an
// unchanged value therefore produce zero downstream traffic.
package state

import "sync"

// Container holds the latest committed value of T.
// The zero value of T is the initial committed value.
type Container[T comparable] struct {
	mu  sync.Mutex
	cur T
}

// NewContainer creates a container committed to the zero value of T.
func NewContainer[T comparable]() *Container[T] {
	return &Container[T]{}
}

// NewContainerWith creates a container committed to initial.
func NewContainerWith[T comparable](initial T) *Container[T] {
	return &Container[T]{cur: initial}
}

// Get returns a copy of the current committed value.
func (c *Container[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Update computes next = f(current) under the container's critical section.
// If f fails, nothing is committed and the error is returned — only this
// update pass is aborted, not the caller's loop. If next equals current the
// update is a no-op. Otherwise next is committed and forwarded to every
// sink before the section is released, so sinks observe each container's
// committed values in total order. Sinks must not block (latest-wins
// mailboxes and coalescing signals qualify).
//
// Reports whether a new value was committed.
func (c *Container[T]) Update(f func(T) (T, error), sinks ...func(T)) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := f(c.cur)
	if err != nil {
		return false, err
	}
	if next == c.cur {
		return false, nil
	}

	c.cur = next
	for _, sink := range sinks {
		sink(next)
	}
	return true, nil
}
