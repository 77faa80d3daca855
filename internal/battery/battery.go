// Package battery samples the battery voltage and the external-power sense
// line, publishing the readings through a change-gated container.
package battery

import (
	"context"
	"time"

	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/state"
)

// SampleInterval is how often the battery is sampled.
const SampleInterval = 2 * time.Second

// State is one battery reading.
type State struct {
	// Voltage is the battery voltage in millivolts. Meaningless until
	// Known is set.
	Voltage int

	// Powered means external power is present.
	Powered bool

	// Known means at least one sample has been taken.
	Known bool
}

// ADC reads the battery voltage channel.
type ADC interface {
	// ReadMillivolts returns the battery voltage in millivolts.
	ReadMillivolts() (int, error)
}

// PowerSense reads the external-power detect line.
type PowerSense interface {
	// Powered reports whether external power is present.
	Powered() (bool, error)
}

// Run samples the battery every SampleInterval and publishes the reading.
// Sampling failures are fatal to the task.
func Run(ctx context.Context, after func(time.Duration) <-chan time.Time, adc ADC, sense PowerSense, st *state.Container[State], sinks ...func(State)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-after(SampleInterval):
		}

		mv, err := adc.ReadMillivolts()
		if err != nil {
			return err
		}
		powered, err := sense.Powered()
		if err != nil {
			return err
		}

		_, err = st.Update(func(State) (State, error) {
			return State{Voltage: mv, Powered: powered, Known: true}, nil
		}, sinks...)
		if err != nil {
			log.Errorf("battery: state update: %v", err)
		}
	}
}
