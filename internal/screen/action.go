package screen

// Action is a command the user can trigger from the on-device menu.
type Action uint8

const (
	ActionOpenValve Action = iota
	ActionCloseValve
	ActionArm
	ActionDisarm
	ActionDismiss

	numActions
)

func (a Action) String() string {
	switch a {
	case ActionOpenValve:
		return "Open Valve"
	case ActionCloseValve:
		return "Close Valve"
	case ActionArm:
		return "Arm"
	case ActionDisarm:
		return "Disarm"
	case ActionDismiss:
		return "Dismiss"
	default:
		return "?"
	}
}

// ActionSet is a small bitset of Actions. Iteration order is the Action
// declaration order.
type ActionSet uint8

// With returns the set with a added.
func (s ActionSet) With(a Action) ActionSet {
	return s | 1<<a
}

// Contains reports whether a is in the set.
func (s ActionSet) Contains(a Action) bool {
	return s&(1<<a) != 0
}

// IsEmpty reports whether the set has no actions.
func (s ActionSet) IsEmpty() bool {
	return s == 0
}

// Len returns the number of actions in the set.
func (s ActionSet) Len() int {
	n := 0
	for a := Action(0); a < numActions; a++ {
		if s.Contains(a) {
			n++
		}
	}
	return n
}

// First returns the first action in the set.
func (s ActionSet) First() (Action, bool) {
	for a := Action(0); a < numActions; a++ {
		if s.Contains(a) {
			return a, true
		}
	}
	return 0, false
}

// Next returns the action in the set following a, if any.
func (s ActionSet) Next(a Action) (Action, bool) {
	for n := a + 1; n < numActions; n++ {
		if s.Contains(n) {
			return n, true
		}
	}
	return 0, false
}

// Prev returns the action in the set preceding a, if any.
func (s ActionSet) Prev(a Action) (Action, bool) {
	for p := a; p > 0; p-- {
		if s.Contains(p - 1) {
			return p - 1, true
		}
	}
	return 0, false
}
