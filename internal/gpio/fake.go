package gpio

import "sync"

// FakeOutput records every level driven onto the line.
type FakeOutput struct {
	mu sync.Mutex

	// History contains every value passed to Set, in order.
	History []bool

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by Set.
	SetError error
}

// NewFakeOutput creates a FakeOutput, initially low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the driven level.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.History = append(f.History, on)
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Level returns the currently driven level (low if never set).
func (f *FakeOutput) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.History) == 0 {
		return false
	}
	return f.History[len(f.History)-1]
}

// FakeButton invokes its edge callback on demand.
type FakeButton struct {
	pressed func()

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeButton creates a FakeButton delivering edges to pressed.
func NewFakeButton(pressed func()) *FakeButton {
	return &FakeButton{pressed: pressed}
}

// Press simulates one falling edge.
func (f *FakeButton) Press() {
	f.pressed()
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.Closed = true
	return nil
}
