package battery

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SysfsADC reads the battery voltage from a Linux IIO sysfs channel
// (in_voltage_raw scaled by in_voltage_scale, or a pre-scaled
// in_voltage_input file).
type SysfsADC struct {
	// Path is the sysfs voltage file, reporting millivolts.
	Path string
}

// ReadMillivolts reads and parses the sysfs voltage file.
func (a *SysfsADC) ReadMillivolts() (int, error) {
	raw, err := os.ReadFile(a.Path)
	if err != nil {
		return 0, fmt.Errorf("read adc %s: %w", a.Path, err)
	}
	mv, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse adc %s: %w", a.Path, err)
	}
	return mv, nil
}

// SysfsPowerSense reads the external-power supply status from sysfs
// (a power_supply "online" file: 1 when external power is present).
type SysfsPowerSense struct {
	Path string
}

// Powered reads and parses the online file.
func (s *SysfsPowerSense) Powered() (bool, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return false, fmt.Errorf("read power sense %s: %w", s.Path, err)
	}
	return strings.TrimSpace(string(raw)) == "1", nil
}
