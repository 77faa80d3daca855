package screen

// Page is one of the two on-device pages. Prev/next always toggle between
// them.
type Page uint8

const (
	PageSummary Page = iota
	PageBattery
)

func (p Page) String() string {
	if p == PageBattery {
		return "Battery"
	}
	return "Summary"
}

// Prev returns the previous page.
func (p Page) Prev() Page {
	if p == PageSummary {
		return PageBattery
	}
	return PageSummary
}

// Next returns the next page.
func (p Page) Next() Page {
	return p.Prev()
}

// eligibleActions returns the actions this page can offer, before the
// intersection with the globally active set.
func (p Page) eligibleActions() ActionSet {
	switch p {
	case PageSummary:
		var s ActionSet
		return s.With(ActionOpenValve).With(ActionCloseValve).With(ActionArm).With(ActionDisarm)
	default:
		return 0
	}
}
