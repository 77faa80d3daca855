package state

import (
	"errors"
	"testing"
)

func TestUpdatePropagatesOnlyOnChange(t *testing.T) {
	c := NewContainer[int]()

	var seen []int
	sink := func(v int) { seen = append(seen, v) }

	steps := []struct {
		next       int
		wantCommit bool
	}{
		{1, true},
		{1, false}, // same value, must not propagate
		{1, false},
		{2, true},
		{2, false},
		{1, true},
	}

	for i, step := range steps {
		next := step.next
		committed, err := c.Update(func(int) (int, error) { return next, nil }, sink)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if committed != step.wantCommit {
			t.Fatalf("step %d: committed=%v, want %v", i, committed, step.wantCommit)
		}
	}

	want := []int{1, 2, 1}
	if len(seen) != len(want) {
		t.Fatalf("sink saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("sink saw %v, want %v", seen, want)
		}
	}

	// Never two consecutive identical propagated values.
	for i := 1; i < len(seen); i++ {
		if seen[i] == seen[i-1] {
			t.Fatalf("consecutive identical propagations: %v", seen)
		}
	}
}

func TestUpdateErrorAbortsSinglePass(t *testing.T) {
	c := NewContainerWith(10)

	var seen []int
	sink := func(v int) { seen = append(seen, v) }

	boom := errors.New("boom")
	committed, err := c.Update(func(int) (int, error) { return 0, boom }, sink)
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if committed {
		t.Fatal("failed update must not commit")
	}
	if len(seen) != 0 {
		t.Fatalf("failed update must not propagate, sink saw %v", seen)
	}
	if c.Get() != 10 {
		t.Fatalf("failed update changed the value: %d", c.Get())
	}

	// The container remains usable after a failed pass.
	if _, err := c.Update(func(int) (int, error) { return 11, nil }, sink); err != nil {
		t.Fatalf("update after failure: %v", err)
	}
	if c.Get() != 11 {
		t.Fatalf("want 11, got %d", c.Get())
	}
}

func TestUpdateMultipleSinks(t *testing.T) {
	type pair struct{ A, B int }
	c := NewContainer[pair]()

	var a, b []pair
	c.Update(func(pair) (pair, error) { return pair{1, 2}, nil },
		func(v pair) { a = append(a, v) },
		func(v pair) { b = append(b, v) })

	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("both sinks must observe the commit: a=%v b=%v", a, b)
	}
	if a[0] != (pair{1, 2}) || b[0] != (pair{1, 2}) {
		t.Fatalf("wrong values: a=%v b=%v", a, b)
	}
}
