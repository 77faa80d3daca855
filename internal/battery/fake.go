package battery

import "sync"

// FakeADC returns a settable voltage.
type FakeADC struct {
	mu sync.Mutex
	mv int

	// Err, if set, will be returned by ReadMillivolts.
	Err error
}

// NewFakeADC creates a FakeADC reading mv millivolts.
func NewFakeADC(mv int) *FakeADC {
	return &FakeADC{mv: mv}
}

// SetMillivolts changes the reading.
func (f *FakeADC) SetMillivolts(mv int) {
	f.mu.Lock()
	f.mv = mv
	f.mu.Unlock()
}

// ReadMillivolts returns the configured reading.
func (f *FakeADC) ReadMillivolts() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	return f.mv, nil
}

// FakePowerSense returns a settable powered flag.
type FakePowerSense struct {
	mu      sync.Mutex
	powered bool

	// Err, if set, will be returned by Powered.
	Err error
}

// NewFakePowerSense creates a FakePowerSense.
func NewFakePowerSense(powered bool) *FakePowerSense {
	return &FakePowerSense{powered: powered}
}

// SetPowered changes the flag.
func (f *FakePowerSense) SetPowered(powered bool) {
	f.mu.Lock()
	f.powered = powered
	f.mu.Unlock()
}

// Powered returns the configured flag.
func (f *FakePowerSense) Powered() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	return f.powered, nil
}
