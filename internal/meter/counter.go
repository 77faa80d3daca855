// Package meter polls the pulse-counting peripheral and maintains the
// water meter's armed/leak state. The peripheral itself is a low-power
// coprocessor that keeps counting edges (and can wake the device on them)
// while the main board sleeps; it is reached over a serial link.
package meter

// CounterData is one reading of the pulse counter.
type CounterData struct {
	// EdgesCount is the number of flow pulses accumulated since the
	// accumulator was last zeroed.
	EdgesCount uint32

	// WakeupEdges is the configured wake-on-edges threshold: the pulse
	// count that triggers a wake (and leak concern) while armed. Zero
	// means disarmed.
	WakeupEdges uint32
}

// Counter is the pulse-counting peripheral.
type Counter interface {
	// Start brings the counter up.
	Start() error

	// Data reads the current counter data without modifying it.
	Data() (CounterData, error)

	// SwapData atomically installs data and returns what was installed
	// before.
	SwapData(data CounterData) (CounterData, error)

	// Close releases the peripheral.
	Close() error
}
