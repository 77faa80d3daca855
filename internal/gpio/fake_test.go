package gpio

import (
	"errors"
	"testing"
)

func TestFakeOutputRecordsHistory(t *testing.T) {
	out := NewFakeOutput()

	if out.Level() {
		t.Fatal("fresh output should be low")
	}

	out.Set(true)
	out.Set(true)
	out.Set(false)

	if !out.History[0] || !out.History[1] || out.History[2] {
		t.Fatalf("wrong history: %v", out.History)
	}
	if out.Level() {
		t.Fatal("level should track the last set")
	}
}

func TestFakeOutputSetError(t *testing.T) {
	out := NewFakeOutput()
	boom := errors.New("pin broke")
	out.SetError = boom

	if err := out.Set(true); !errors.Is(err, boom) {
		t.Fatalf("want injected error, got %v", err)
	}
	if len(out.History) != 0 {
		t.Fatal("failed set must not be recorded")
	}
}

func TestFakeButtonDeliversEdges(t *testing.T) {
	var edges int
	btn := NewFakeButton(func() { edges++ })

	btn.Press()
	btn.Press()

	if edges != 2 {
		t.Fatalf("want 2 edges, got %d", edges)
	}

	btn.Close()
	if !btn.Closed {
		t.Fatal("close not recorded")
	}
}
