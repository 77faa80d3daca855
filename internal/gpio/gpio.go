// Package gpio provides the GPIO abstractions the valve actuator and the
// front-panel buttons are built on. The real implementation uses the Linux
// GPIO character device; the fake implementations allow testing without
// hardware.
package gpio

// Output is a single boolean output line (valve power/direction).
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close releases the line.
	Close() error
}

// Button is a single edge-subscribed input line. Presses are delivered as
// wake notifications into whatever callback the line was opened with; the
// line itself carries no state.
type Button interface {
	// Close releases the line.
	Close() error
}

// Default pin assignments (BCM numbering).
const (
	DefaultPinValvePower = 10
	DefaultPinValveOpen  = 12
	DefaultPinValveClose = 13
	DefaultPinButton1    = 35 // prev
	DefaultPinButton2    = 0  // next
	DefaultPinButton3    = 27 // select
)
