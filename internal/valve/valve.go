// Package valve drives the motorized shutoff valve: a three-line actuator
// (power enable plus one line per direction) spun for a fixed rated turn
// time. The same Spin primitive serves both the reactive control tasks and
// the pre-scheduler emergency close, so there is exactly one piece of
// motor-control logic in the system.
package valve

import (
	"fmt"
	"time"
)

// TurnDuration is the motor's rated time for a full open or close turn.
const TurnDuration = 20 * time.Second

// State is the physical valve status.
type State int

const (
	// StateUnknown means the valve has not been actuated since startup.
	StateUnknown State = iota
	StateOpen
	StateOpening
	StateClosed
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateOpening:
		return "OPENING"
	case StateClosed:
		return "CLOSED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Settled reports whether the valve is at a known rest position.
func (s State) Settled() bool {
	return s == StateOpen || s == StateClosed
}

// Command is a requested valve action.
type Command int

const (
	CommandOpen Command = iota
	CommandClose
)

func (c Command) String() string {
	if c == CommandOpen {
		return "OPEN"
	}
	return "CLOSE"
}

// SpinCommand is what the actuator lines are driven with. SpinStop is the
// unconditional de-energize; it is always safe and idempotent.
type SpinCommand int

const (
	SpinStop SpinCommand = iota
	SpinOpen
	SpinClose
)

// Output is a single boolean actuator line.
type Output interface {
	Set(on bool) error
}

// Pins are the three actuator lines.
type Pins struct {
	Power Output
	Open  Output
	Close Output
}

// Spin drives the actuator lines for cmd:
//
//	SpinOpen:  power=1 open=1 close=0
//	SpinClose: power=1 open=0 close=1
//	SpinStop:  power=0 open=0 close=0
//
// The direction lines are never asserted together. For a stop, power is
// dropped before the direction lines are cleared; for a turn, the
// direction is settled before power is applied.
func Spin(pins Pins, cmd SpinCommand) error {
	switch cmd {
	case SpinOpen:
		if err := pins.Close.Set(false); err != nil {
			return fmt.Errorf("clear close line: %w", err)
		}
		if err := pins.Open.Set(true); err != nil {
			return fmt.Errorf("assert open line: %w", err)
		}
		if err := pins.Power.Set(true); err != nil {
			return fmt.Errorf("assert power line: %w", err)
		}
	case SpinClose:
		if err := pins.Open.Set(false); err != nil {
			return fmt.Errorf("clear open line: %w", err)
		}
		if err := pins.Close.Set(true); err != nil {
			return fmt.Errorf("assert close line: %w", err)
		}
		if err := pins.Power.Set(true); err != nil {
			return fmt.Errorf("assert power line: %w", err)
		}
	default:
		if err := pins.Power.Set(false); err != nil {
			return fmt.Errorf("clear power line: %w", err)
		}
		if err := pins.Open.Set(false); err != nil {
			return fmt.Errorf("clear open line: %w", err)
		}
		if err := pins.Close.Set(false); err != nil {
			return fmt.Errorf("clear close line: %w", err)
		}
	}
	return nil
}

// EmergencyClose runs the synchronous shutoff used when the device woke
// from deep sleep on the autonomous leak trigger: close, wait out the turn,
// stop. It bypasses all the reactive machinery so the shutoff happens even
// if everything after it fails to initialize. sleep is injectable for
// tests; production passes time.Sleep.
func EmergencyClose(pins Pins, sleep func(time.Duration)) error {
	if err := Spin(pins, SpinClose); err != nil {
		return fmt.Errorf("emergency close: %w", err)
	}
	sleep(TurnDuration)
	if err := Spin(pins, SpinStop); err != nil {
		return fmt.Errorf("emergency stop: %w", err)
	}
	return nil
}
