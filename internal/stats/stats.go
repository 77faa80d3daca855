// Package stats derives rolling flow statistics from the water meter
// state: one measurement window per fixed duration, each rotating
// independently on its own aligned period boundary.
package stats

import (
	"context"
	"time"

	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/state"
)

// Windows is the number of concurrently tracked measurement windows.
const Windows = 8

// Durations are the fixed window lengths, one per window index.
var Durations = [Windows]time.Duration{
	5 * time.Minute,
	30 * time.Minute,
	time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// TickInterval is how often the statistics are refreshed when no meter
// state arrives.
const TickInterval = 10 * time.Second

// FlowSnapshot is a point sample of the edge counter.
type FlowSnapshot struct {
	// Time is the wall-clock instant of the sample, as a duration since
	// the epoch.
	Time time.Duration

	// EdgesCount is the running edge total at that instant.
	EdgesCount uint64
}

// FlowMeasurement is a completed window: the snapshots at its start and
// end. The zero value means no window has completed yet.
type FlowMeasurement struct {
	Start FlowSnapshot
	End   FlowSnapshot
}

// IsZero reports whether the measurement slot has never been filled.
func (m FlowMeasurement) IsZero() bool {
	return m == FlowMeasurement{}
}

// State holds the rolling statistics. Arrays rather than slices keep the
// struct comparable, which the change-gated propagation depends on.
type State struct {
	// Installation is the snapshot taken when tracking began.
	Installation FlowSnapshot

	// MostRecent is the latest snapshot.
	MostRecent FlowSnapshot

	// Snapshots holds each window's current start sample.
	Snapshots [Windows]FlowSnapshot

	// Measurements holds each window's most recently completed
	// measurement.
	Measurements [Windows]FlowMeasurement
}

// alignedDue reports whether a window that started at start is due to
// rotate at now: the period boundary is aligned to multiples of d measured
// from the window's own start time, not from a fixed epoch.
func alignedDue(start, now, d time.Duration) bool {
	aligned := start / d * d
	return now-aligned >= d
}

// update folds an edges figure observed at now into the statistics,
// rotating every window whose aligned period has elapsed. The edge total
// accumulates the absolute figure onto the running count, matching the
// meter's published totals.
func (s *State) update(edgesCount uint64, now time.Duration) {
	s.MostRecent = FlowSnapshot{Time: now, EdgesCount: s.MostRecent.EdgesCount + edgesCount}
	if s.Installation == (FlowSnapshot{}) {
		s.Installation = s.MostRecent
	}

	for i := range s.Snapshots {
		if alignedDue(s.Snapshots[i].Time, now, Durations[i]) {
			prev := s.Snapshots[i]
			s.Snapshots[i] = s.MostRecent
			s.Measurements[i] = FlowMeasurement{Start: prev, End: s.MostRecent}
		}
	}
}

// Run derives the statistics, racing the next meter state against the
// refresh timer. On a meter state the edges figure comes from it; on a
// timeout no growth is assumed and the last recorded total is reused.
// A state update only propagates downstream when it actually changed.
func Run(ctx context.Context, after func(time.Duration) <-chan time.Time, now func() time.Duration, meterStates *notify.Value[meter.State], st *state.Container[State], sinks ...func(State)) error {
	for {
		var edgesCount uint64

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-meterStates.C():
			ms, ok := meterStates.TryTake()
			if !ok {
				continue
			}
			edgesCount = ms.EdgesCount

		case <-after(TickInterval):
			// No growth assumed on a timeout; the update still advances
			// MostRecent's time so due windows rotate.
			edgesCount = 0
		}

		_, err := st.Update(func(old State) (State, error) {
			next := old
			next.update(edgesCount, now())
			return next, nil
		}, sinks...)
		if err != nil {
			log.Errorf("stats: state update: %v", err)
		}
	}
}
