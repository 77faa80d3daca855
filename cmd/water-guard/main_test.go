package main

import (
	"strings"
	"testing"

	"github.com/sweeney/water-guard/internal/meter"
)

func TestResolveWakeReason(t *testing.T) {
	cases := []struct {
		flag, env, want string
	}{
		{"", "", WakeUnknown},
		{"leak", "", "leak"},
		{"", "button", "button"},
		{"leak", "button", "leak"}, // flag wins
	}
	for _, c := range cases {
		if got := resolveWakeReason(c.flag, c.env); got != c.want {
			t.Errorf("resolveWakeReason(%q, %q) = %q, want %q", c.flag, c.env, got, c.want)
		}
	}
}

func TestFormatCounterState(t *testing.T) {
	out := formatCounterState(meter.CounterData{EdgesCount: 42, WakeupEdges: 1})
	if !strings.Contains(out, "edges: 42") || !strings.Contains(out, "armed: yes") {
		t.Errorf("armed output: %q", out)
	}

	out = formatCounterState(meter.CounterData{EdgesCount: 0, WakeupEdges: 0})
	if !strings.Contains(out, "armed: no") {
		t.Errorf("disarmed output: %q", out)
	}
}
