package system

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/gpio"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/mqtt"
	"github.com/sweeney/water-guard/internal/netmon"
	"github.com/sweeney/water-guard/internal/screen"
	"github.com/sweeney/water-guard/internal/valve"
)

func TestDomainCapacity(t *testing.T) {
	d := NewDomain("test")
	nop := func(context.Context) error { return nil }

	for i := 0; i < DomainCapacity; i++ {
		if err := d.Add(fmt.Sprintf("task%d", i), nop); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if d.Len() != DomainCapacity {
		t.Fatalf("len %d, want %d", d.Len(), DomainCapacity)
	}

	err := d.Add("overflow", nop)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("overflow add: %v, want ErrCapacity", err)
	}
}

func TestDomainFirstErrorCancelsSiblings(t *testing.T) {
	d := NewDomain("test")
	boom := errors.New("hardware gone")

	stopped := make(chan struct{})
	d.Add("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	d.Add("failer", func(context.Context) error { return boom })

	err := d.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("run: %v, want the task error", err)
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sibling task not cancelled")
	}
}

func TestDomainCancellationIsClean(t *testing.T) {
	d := NewDomain("test")
	d.Add("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := d.Run(ctx); err != nil {
		t.Fatalf("cancelled run returned %v, want nil", err)
	}
}

func testOptions() (Options, *mqtt.FakeClient, valve.Pins) {
	pins := valve.Pins{
		Power: gpio.NewFakeOutput(),
		Open:  gpio.NewFakeOutput(),
		Close: gpio.NewFakeOutput(),
	}
	broker := mqtt.NewFakeClient()
	opts := Options{
		ValvePins:  pins,
		Counter:    meter.NewFakeCounter(),
		ADC:        battery.NewFakeADC(3900),
		PowerSense: battery.NewFakePowerSense(false),
		Link:       &netmon.FakeLink{IsUp: true},
		Display:    screen.NewFakeDisplay(20, 4),
		Broker:     broker,
		BaseTopic:  "water/guard",
	}
	return opts, broker, pins
}

// TestBrokerCommandReachesValve drives the full wiring: an inbound MQTT
// command flows through the mailbox into the valve control task, the
// spin task energizes the motor lines, and the committed state is
// published back to the broker.
func TestBrokerCommandReachesValve(t *testing.T) {
	opts, broker, pins := testOptions()
	s := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Wait for the receive task to subscribe, then inject the command.
	waitFor(t, func() bool {
		return broker.Deliver("water/guard/cmd/valve", []byte("CLOSE"))
	})

	waitFor(t, func() bool { return s.ValveState.Get() == valve.StateClosing })

	power := pins.Power.(*gpio.FakeOutput)
	closeLine := pins.Close.(*gpio.FakeOutput)
	if !power.Level() || !closeLine.Level() {
		t.Fatalf("motor not spinning closed: power=%v close=%v", power.Level(), closeLine.Level())
	}

	// The committed state went out on the broker too.
	waitFor(t, func() bool {
		return len(broker.PublishedOn(mqtt.TopicValveState)) > 0
	})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v after cancel", err)
	}

	// Teardown de-energizes the motor.
	if power.Level() {
		t.Fatal("motor still energized after shutdown")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never reached")
}
