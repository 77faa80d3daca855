package screen

import "fmt"

// draw renders one UI snapshot. The whole screen is cleared only when the
// page (or menu) changed; otherwise only the active page's dirty widgets
// are redrawn. Each widget accessor yields a value only when its governing
// flag or the page flag is dirty, so unchanged regions are skipped. The
// single flush at the end makes the frame visible.
func (s *Screen) draw(d Display, snap State) error {
	if snap.changed(SourcePage) {
		if err := d.Clear(); err != nil {
			return err
		}
	}

	var err error
	switch snap.ActivePage {
	case PageSummary:
		err = s.drawSummary(d, snap)
	case PageBattery:
		err = s.drawBattery(d, snap)
	}
	if err != nil {
		return err
	}

	if snap.MenuOpen {
		if err := s.drawMenu(d, snap); err != nil {
			return err
		}
	}

	return d.Flush()
}

// valveText is the widget accessor for the valve line: it yields text only
// when the valve flag or the page flag is dirty.
func (s *Screen) valveText(snap State) (string, bool) {
	if !snap.changed(SourceValve, SourcePage) {
		return "", false
	}
	return fmt.Sprintf("Valve: %s", s.valveState.Get()), true
}

func (s *Screen) meterText(snap State) (string, bool) {
	if !snap.changed(SourceMeter, SourcePage) {
		return "", false
	}
	ms := s.meterState.Get()
	status := "idle"
	if ms.Leaking {
		status = "LEAK"
	} else if ms.Armed {
		status = "armed"
	}
	return fmt.Sprintf("Water: %d %s", ms.EdgesCount, status), true
}

func (s *Screen) flowText(snap State) (string, bool) {
	if !snap.changed(SourceStats, SourcePage) {
		return "", false
	}
	ss := s.statsState.Get()
	m := ss.Measurements[0]
	if m.IsZero() {
		return "Flow 5m: -", true
	}
	return fmt.Sprintf("Flow 5m: %d", m.End.EdgesCount-m.Start.EdgesCount), true
}

func (s *Screen) batteryText(snap State) (string, bool) {
	if !snap.changed(SourceBattery, SourcePage) {
		return "", false
	}
	bs := s.batteryState.Get()
	if !bs.Known {
		return "Batt: ?", true
	}
	supply := "batt"
	if bs.Powered {
		supply = "ext"
	}
	return fmt.Sprintf("Batt: %dmV %s", bs.Voltage, supply), true
}

func (s *Screen) remainingText(snap State) (string, bool) {
	if !snap.changed(SourceRemainingTime, SourcePage) {
		return "", false
	}
	rt := s.remainingState.Get()
	if rt.Indefinite {
		return "Awake: --", true
	}
	return fmt.Sprintf("Awake: %ds", int(rt.Left.Seconds())), true
}

func (s *Screen) drawSummary(d Display, snap State) error {
	widgets := []func(State) (string, bool){
		s.valveText,
		s.meterText,
		s.flowText,
		s.batteryText,
		s.remainingText,
	}
	for row, widget := range widgets {
		text, dirty := widget(snap)
		if !dirty {
			continue
		}
		if err := drawRow(d, row, text); err != nil {
			return err
		}
	}
	return nil
}

func (s *Screen) drawBattery(d Display, snap State) error {
	text, dirty := s.batteryText(snap)
	if !dirty {
		return nil
	}
	if err := drawRow(d, 0, text); err != nil {
		return err
	}

	bs := s.batteryState.Get()
	charge := "discharging"
	if bs.Powered {
		charge = "on external power"
	}
	if !bs.Known {
		charge = "no sample yet"
	}
	return drawRow(d, 1, charge)
}

// drawRow blanks the row, then writes the text, so shrinking content
// leaves no stale tail.
func drawRow(d Display, row int, text string) error {
	w, _ := d.Size()
	blank := make([]byte, w)
	for i := range blank {
		blank[i] = ' '
	}
	if err := d.DrawText(0, row, string(blank)); err != nil {
		return err
	}
	return d.DrawText(0, row, text)
}

// drawMenu renders the action menu centered on the display, cropped to
// its preferred size.
func (s *Screen) drawMenu(d Display, snap State) error {
	mw, mh := menuPreferredSize(snap.MenuActions)

	dw, dh := d.Size()
	x := (dw - mw) / 2
	if x < 0 {
		x = 0
	}
	y := (dh - mh) / 2
	if y < 0 {
		y = 0
	}

	target := Crop(d, x, y, mw, mh)
	if err := target.Clear(); err != nil {
		return err
	}

	row := 0
	for a := Action(0); a < numActions; a++ {
		if !snap.MenuActions.Contains(a) {
			continue
		}
		marker := "  "
		if a == snap.MenuSelected {
			marker = "> "
		}
		if err := target.DrawText(0, row, marker+a.String()); err != nil {
			return err
		}
		row++
	}
	return nil
}

// menuPreferredSize is the menu's natural extent: one row per enabled
// action, wide enough for the longest label plus the selection marker.
func menuPreferredSize(actions ActionSet) (w, h int) {
	for a := Action(0); a < numActions; a++ {
		if !actions.Contains(a) {
			continue
		}
		h++
		if n := len(a.String()) + 2; n > w {
			w = n
		}
	}
	return w, h
}
