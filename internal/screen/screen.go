// Package screen is the on-device UI: it multiplexes button presses and
// state-change wakes into page/menu navigation, tracks which regions of
// the display are dirty, and renders only those on each draw pass.
package screen

import (
	"context"
	"sync"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/keepalive"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/state"
	"github.com/sweeney/water-guard/internal/stats"
	"github.com/sweeney/water-guard/internal/valve"
)

// Source identifies a piece of render-relevant state.
type Source uint8

const (
	SourcePage Source = iota
	SourceValve
	SourceMeter
	SourceStats
	SourceBattery
	SourceRemainingTime

	numSources
)

// SourceSet is a dirty-flag bitset over Sources.
type SourceSet uint8

// AllSources marks everything dirty; the initial state, so the first draw
// renders the full screen.
const AllSources = SourceSet(1<<numSources - 1)

// With returns the set with s added.
func (set SourceSet) With(s Source) SourceSet {
	return set | 1<<s
}

// Contains reports whether s is in the set.
func (set SourceSet) Contains(s Source) bool {
	return set&(1<<s) != 0
}

// State is the render-relevant UI state. Comparable by structural value.
type State struct {
	// Changeset flags the sources that changed since the last draw.
	// Cleared exactly once per draw, atomically with the snapshot the
	// draw works from.
	Changeset SourceSet

	// ActivePage is the page being shown.
	ActivePage Page

	// MenuOpen, MenuActions and MenuSelected describe the action menu,
	// when one is open.
	MenuOpen     bool
	MenuActions  ActionSet
	MenuSelected Action
}

// changed reports whether any of the given sources is dirty.
func (s State) changed(sources ...Source) bool {
	for _, src := range sources {
		if s.Changeset.Contains(src) {
			return true
		}
	}
	return false
}

// Screen owns the UI state machine and its wake sources.
type Screen struct {
	mu sync.Mutex
	st State

	// Wake sources. Buttons carry debounced presses;
	// the rest are pinged by the orchestrator when the matching
	// container commits a change.
	Button1Pressed   *notify.Signal // prev
	Button2Pressed   *notify.Signal // next
	Button3Pressed   *notify.Signal // select
	ValveChanged     *notify.Signal
	MeterChanged     *notify.Signal
	StatsChanged     *notify.Signal
	BatteryChanged   *notify.Signal
	RemainingChanged *notify.Signal

	drawRequest *notify.Signal

	valveState     *state.Container[valve.State]
	meterState     *state.Container[meter.State]
	statsState     *state.Container[stats.State]
	batteryState   *state.Container[battery.State]
	remainingState *state.Container[keepalive.RemainingTime]

	valveCommands *notify.Value[valve.Command]
	meterCommands *notify.Value[meter.Command]
}

// New creates a Screen reading the given containers and feeding triggered
// actions into the given command mailboxes. The initial changeset marks
// everything dirty so the first draw paints the whole screen.
func New(
	valveState *state.Container[valve.State],
	meterState *state.Container[meter.State],
	statsState *state.Container[stats.State],
	batteryState *state.Container[battery.State],
	remainingState *state.Container[keepalive.RemainingTime],
	valveCommands *notify.Value[valve.Command],
	meterCommands *notify.Value[meter.Command],
) *Screen {
	return &Screen{
		st: State{Changeset: AllSources, ActivePage: PageSummary},

		Button1Pressed:   notify.NewSignal(),
		Button2Pressed:   notify.NewSignal(),
		Button3Pressed:   notify.NewSignal(),
		ValveChanged:     notify.NewSignal(),
		MeterChanged:     notify.NewSignal(),
		StatsChanged:     notify.NewSignal(),
		BatteryChanged:   notify.NewSignal(),
		RemainingChanged: notify.NewSignal(),

		drawRequest: notify.NewSignal(),

		valveState:     valveState,
		meterState:     meterState,
		statsState:     statsState,
		batteryState:   batteryState,
		remainingState: remainingState,

		valveCommands: valveCommands,
		meterCommands: meterCommands,
	}
}

// State returns a copy of the current UI state.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// activeActions derives the globally active action set from live valve and
// meter state: opening an open valve or arming an armed meter makes no
// sense, so those entries drop out.
func (s *Screen) activeActions() ActionSet {
	var set ActionSet

	switch s.valveState.Get() {
	case valve.StateOpen, valve.StateOpening:
		set = set.With(ActionCloseValve)
	case valve.StateClosed, valve.StateClosing:
		set = set.With(ActionOpenValve)
	default:
		set = set.With(ActionOpenValve).With(ActionCloseValve)
	}

	if s.meterState.Get().Armed {
		set = set.With(ActionDisarm)
	} else {
		set = set.With(ActionArm)
	}

	return set
}

// trigger fires the given action into the matching command mailbox.
// Dismiss only closes the menu.
func (s *Screen) trigger(a Action) {
	switch a {
	case ActionOpenValve:
		s.valveCommands.Set(valve.CommandOpen)
	case ActionCloseValve:
		s.valveCommands.Set(valve.CommandClose)
	case ActionArm:
		s.meterCommands.Set(meter.CommandArm)
	case ActionDisarm:
		s.meterCommands.Set(meter.CommandDisarm)
	}
}

// RunInput multiplexes the eight wake sources into UI state mutations.
// Every dispatch raises a single coalesced draw request, so a burst of
// near-simultaneous changes produces one redraw.
func (s *Screen) RunInput(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.Button1Pressed.C():
			s.mutate(func(st *State) {
				if st.MenuOpen {
					// No previous enabled action closes the menu.
					if prev, ok := st.MenuActions.Prev(st.MenuSelected); ok {
						st.MenuSelected = prev
					} else {
						st.MenuOpen = false
						st.MenuActions = 0
						st.MenuSelected = 0
					}
				} else {
					st.ActivePage = st.ActivePage.Prev()
				}
				st.Changeset = st.Changeset.With(SourcePage)
			})

		case <-s.Button2Pressed.C():
			s.mutate(func(st *State) {
				if st.MenuOpen {
					if next, ok := st.MenuActions.Next(st.MenuSelected); ok {
						st.MenuSelected = next
					} else {
						st.MenuOpen = false
						st.MenuActions = 0
						st.MenuSelected = 0
					}
				} else {
					st.ActivePage = st.ActivePage.Next()
				}
				st.Changeset = st.Changeset.With(SourcePage)
			})

		case <-s.Button3Pressed.C():
			var fire Action
			trigger := false
			s.mutate(func(st *State) {
				if st.MenuOpen {
					fire = st.MenuSelected
					trigger = true
					st.MenuOpen = false
					st.MenuActions = 0
					st.MenuSelected = 0
				} else {
					enabled := st.ActivePage.eligibleActions() & s.activeActions()
					if !enabled.IsEmpty() {
						enabled = enabled.With(ActionDismiss)
						first, _ := enabled.First()
						st.MenuOpen = true
						st.MenuActions = enabled
						st.MenuSelected = first
					}
				}
				st.Changeset = st.Changeset.With(SourcePage)
			})
			if trigger {
				s.trigger(fire)
			}

		case <-s.ValveChanged.C():
			s.mutate(func(st *State) { st.Changeset = st.Changeset.With(SourceValve) })

		case <-s.MeterChanged.C():
			s.mutate(func(st *State) { st.Changeset = st.Changeset.With(SourceMeter) })

		case <-s.StatsChanged.C():
			s.mutate(func(st *State) { st.Changeset = st.Changeset.With(SourceStats) })

		case <-s.BatteryChanged.C():
			s.mutate(func(st *State) { st.Changeset = st.Changeset.With(SourceBattery) })

		case <-s.RemainingChanged.C():
			s.mutate(func(st *State) { st.Changeset = st.Changeset.With(SourceRemainingTime) })
		}

		s.drawRequest.Notify()
	}
}

func (s *Screen) mutate(f func(*State)) {
	s.mu.Lock()
	f(&s.st)
	s.mu.Unlock()
}

// RunDraw waits for draw requests and renders. The state snapshot and the
// changeset clear happen under one critical section, so a change arriving
// mid-draw is not lost — it lands in the next draw cycle. Draw failures
// are fatal to the task.
func (s *Screen) RunDraw(ctx context.Context, display Display) error {
	for {
		if err := s.drawRequest.Wait(ctx); err != nil {
			return err
		}

		s.mu.Lock()
		snap := s.st
		s.st.Changeset = 0
		s.mu.Unlock()

		if err := s.draw(display, snap); err != nil {
			return err
		}
	}
}
