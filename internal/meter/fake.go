package meter

import "sync"

// FakeCounter is an in-memory pulse counter for tests. Edges are injected
// with AddEdges; Data/SwapData behave like the coprocessor's atomic
// exchange.
type FakeCounter struct {
	mu   sync.Mutex
	data CounterData

	// Started tracks if Start was called.
	Started bool

	// Closed tracks if Close was called.
	Closed bool

	// Err, if set, will be returned by every peripheral operation.
	Err error
}

// NewFakeCounter creates a FakeCounter with a zeroed accumulator.
func NewFakeCounter() *FakeCounter {
	return &FakeCounter{}
}

// AddEdges simulates flow pulses arriving at the counter.
func (f *FakeCounter) AddEdges(n uint32) {
	f.mu.Lock()
	f.data.EdgesCount += n
	f.mu.Unlock()
}

// Start brings the fake up.
func (f *FakeCounter) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Started = true
	return nil
}

// Data reads the current counter data.
func (f *FakeCounter) Data() (CounterData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return CounterData{}, f.Err
	}
	return f.data, nil
}

// SwapData atomically installs data and returns the previous data.
func (f *FakeCounter) SwapData(data CounterData) (CounterData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return CounterData{}, f.Err
	}
	prev := f.data
	f.data = data
	return prev, nil
}

// Close marks the fake as closed.
func (f *FakeCounter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
