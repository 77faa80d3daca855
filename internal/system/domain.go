package system

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/water-guard/internal/log"
)

// DomainCapacity is the fixed number of task slots per domain.
const DomainCapacity = 16

// ErrCapacity is returned when a domain has no free task slot.
var ErrCapacity = errors.New("system: task domain full")

type task struct {
	name string
	run  func(context.Context) error
}

// Domain is a fixed-capacity group of cooperating tasks that start and
// stop together. The first task error cancels the whole group.
type Domain struct {
	name  string
	tasks []task
}

// NewDomain creates an empty domain.
func NewDomain(name string) *Domain {
	return &Domain{name: name, tasks: make([]task, 0, DomainCapacity)}
}

// Add registers a task. Fails with ErrCapacity once all slots are taken.
func (d *Domain) Add(name string, run func(context.Context) error) error {
	if len(d.tasks) == DomainCapacity {
		return fmt.Errorf("%w: domain %s rejects task %s", ErrCapacity, d.name, name)
	}
	d.tasks = append(d.tasks, task{name: name, run: run})
	return nil
}

// Len returns the number of registered tasks.
func (d *Domain) Len() int {
	return len(d.tasks)
}

// Run starts every registered task and blocks until all have returned.
// The first failure cancels the rest; context cancellation counts as a
// clean stop, not a failure.
func (d *Domain) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, t := range d.tasks {
		t := t
		g.Go(func() error {
			err := t.run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("system: domain %s: task %s: %v", d.name, t.name, err)
				return fmt.Errorf("task %s: %w", t.name, err)
			}
			return err
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
