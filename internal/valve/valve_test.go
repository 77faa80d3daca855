package valve

import (
	"context"
	"testing"
	"time"

	"github.com/sweeney/water-guard/internal/gpio"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/state"
)

func fakePins() (Pins, *gpio.FakeOutput, *gpio.FakeOutput, *gpio.FakeOutput) {
	power := gpio.NewFakeOutput()
	open := gpio.NewFakeOutput()
	close := gpio.NewFakeOutput()
	return Pins{Power: power, Open: open, Close: close}, power, open, close
}

func TestSpinTruthTable(t *testing.T) {
	tests := []struct {
		name                    string
		cmd                     SpinCommand
		power, open, closeLevel bool
	}{
		{"open", SpinOpen, true, true, false},
		{"close", SpinClose, true, false, true},
		{"stop", SpinStop, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pins, power, open, close := fakePins()

			// Start from every prior output state.
			priors := []SpinCommand{SpinStop, SpinOpen, SpinClose}
			for _, prior := range priors {
				if err := Spin(pins, prior); err != nil {
					t.Fatalf("prior spin: %v", err)
				}
				if err := Spin(pins, tt.cmd); err != nil {
					t.Fatalf("spin: %v", err)
				}
				if power.Level() != tt.power || open.Level() != tt.open || close.Level() != tt.closeLevel {
					t.Fatalf("after prior %v: power=%v open=%v close=%v, want %v/%v/%v",
						prior, power.Level(), open.Level(), close.Level(),
						tt.power, tt.open, tt.closeLevel)
				}
			}
		})
	}
}

func TestSpinNeverAssertsBothDirections(t *testing.T) {
	pins, _, open, close := fakePins()

	for _, cmd := range []SpinCommand{SpinOpen, SpinClose, SpinOpen, SpinStop, SpinClose} {
		if err := Spin(pins, cmd); err != nil {
			t.Fatalf("spin %v: %v", cmd, err)
		}
		if open.Level() && close.Level() {
			t.Fatalf("both direction lines asserted after %v", cmd)
		}
	}
}

func TestEmergencyClose(t *testing.T) {
	pins, power, open, close := fakePins()

	var slept time.Duration
	err := EmergencyClose(pins, func(d time.Duration) {
		slept = d
		// Mid-turn the motor must be driving closed.
		if !power.Level() || open.Level() || !close.Level() {
			t.Errorf("mid-turn lines: power=%v open=%v close=%v", power.Level(), open.Level(), close.Level())
		}
	})
	if err != nil {
		t.Fatalf("emergency close: %v", err)
	}
	if slept != TurnDuration {
		t.Fatalf("slept %v, want %v", slept, TurnDuration)
	}
	if power.Level() || open.Level() || close.Level() {
		t.Fatal("motor left energized after emergency close")
	}
}

// fakeTimer hands out controllable one-shot timer channels.
type fakeTimer struct {
	armed []chan time.Time
	durs  []time.Duration
}

func (f *fakeTimer) after(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.armed = append(f.armed, ch)
	f.durs = append(f.durs, d)
	return ch
}

func (f *fakeTimer) fire(i int) {
	f.armed[i] <- time.Time{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestControlAndSpinOpenCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pins, power, open, _ := fakePins()
	commands := notify.NewValue[Command]()
	spin := notify.NewValue[SpinCommand]()
	spinDone := notify.NewSignal()
	st := state.NewContainer[State]()
	published := notify.NewValue[State]()

	timer := &fakeTimer{}

	go RunSpin(ctx, timer.after, pins, spin, spinDone)
	go RunControl(ctx, commands, spin, spinDone, st, published.Sink())

	commands.Set(CommandOpen)

	// Transient state published, motor spinning open, timer armed.
	waitFor(t, func() bool { return st.Get() == StateOpening })
	if got, _ := published.TryTake(); got != StateOpening {
		t.Fatalf("published %v, want %v", got, StateOpening)
	}
	waitFor(t, func() bool { return power.Level() && open.Level() })
	waitFor(t, func() bool { return len(timer.armed) == 1 })
	if timer.durs[0] != TurnDuration {
		t.Fatalf("timer armed for %v, want %v", timer.durs[0], TurnDuration)
	}

	// Expiry stops the motor and settles the state.
	timer.fire(0)
	waitFor(t, func() bool { return st.Get() == StateOpen })
	waitFor(t, func() bool { return !power.Level() && !open.Level() })
	if got, _ := published.TryTake(); got != StateOpen {
		t.Fatalf("published %v, want %v", got, StateOpen)
	}
}

func TestControlCloseCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pins, _, _, closePin := fakePins()
	commands := notify.NewValue[Command]()
	spin := notify.NewValue[SpinCommand]()
	spinDone := notify.NewSignal()
	st := state.NewContainer[State]()

	timer := &fakeTimer{}

	go RunSpin(ctx, timer.after, pins, spin, spinDone)
	go RunControl(ctx, commands, spin, spinDone, st)

	commands.Set(CommandClose)
	waitFor(t, func() bool { return st.Get() == StateClosing })
	waitFor(t, func() bool { return closePin.Level() })

	waitFor(t, func() bool { return len(timer.armed) == 1 })
	timer.fire(0)
	waitFor(t, func() bool { return st.Get() == StateClosed })
}

func TestSpinRestartOnNewerCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pins, power, _, closePin := fakePins()
	spin := notify.NewValue[SpinCommand]()
	done := notify.NewSignal()
	timer := &fakeTimer{}

	go RunSpin(ctx, timer.after, pins, spin, done)

	spin.Set(SpinOpen)
	waitFor(t, func() bool { return len(timer.armed) == 1 })

	// A newer command mid-spin re-arms the timer and reverses direction.
	spin.Set(SpinClose)
	waitFor(t, func() bool { return len(timer.armed) == 2 })
	waitFor(t, func() bool { return closePin.Level() })

	// Only the second timer matters now; firing it stops the motor.
	timer.fire(1)
	waitFor(t, func() bool { return !power.Level() })
}
