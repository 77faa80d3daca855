package netmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/state"
)

type pollTimer struct {
	fire chan time.Time
}

func (p *pollTimer) after(time.Duration) <-chan time.Time {
	return p.fire
}

type fakeBroker struct {
	mu        sync.Mutex
	connected bool
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

func TestPollPublishesConnectivity(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	link := &FakeLink{IsUp: true}
	broker := &fakeBroker{connected: true}
	st := state.NewContainer[State]()
	published := notify.NewValue[State]()
	timer := &pollTimer{fire: make(chan time.Time)}

	go Run(ctx, timer.after, link, broker, st, published.Sink())

	timer.fire <- time.Time{}

	got, err := published.Take(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got != (State{NetUp: true, BrokerUp: true}) {
		t.Fatalf("published %+v", got)
	}
}

func TestUnchangedStateDoesNotPropagate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	link := &FakeLink{IsUp: true}
	broker := &fakeBroker{}
	st := state.NewContainer[State]()
	published := notify.NewValue[State]()
	timer := &pollTimer{fire: make(chan time.Time)}

	go Run(ctx, timer.after, link, broker, st, published.Sink())

	timer.fire <- time.Time{}
	if _, err := published.Take(ctx); err != nil {
		t.Fatalf("first poll: %v", err)
	}

	// Same result again: nothing propagates.
	timer.fire <- time.Time{}
	time.Sleep(20 * time.Millisecond)
	if _, ok := published.TryTake(); ok {
		t.Fatal("unchanged connectivity was propagated")
	}

	// Broker comes up: propagates.
	broker.setConnected(true)
	timer.fire <- time.Time{}
	got, err := published.Take(ctx)
	if err != nil {
		t.Fatalf("third poll: %v", err)
	}
	if !got.BrokerUp {
		t.Fatalf("published %+v, want broker up", got)
	}
}

func TestLinkErrorIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("no such interface")
	link := &FakeLink{Err: boom}
	st := state.NewContainer[State]()
	timer := &pollTimer{fire: make(chan time.Time, 1)}
	timer.fire <- time.Time{}

	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, timer.after, link, &fakeBroker{}, st) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Fatalf("want link error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task did not surface the link error")
	}
}
