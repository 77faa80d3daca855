// Package emergency is the reactive watchdog: it closes the valve when a
// leak is flagged, or when the battery gets critically low with no
// external power (a dying device must fail with the water off).
package emergency

import (
	"context"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/valve"
)

// LowVoltageMillivolts is the battery level below which the valve is
// closed preemptively while unpowered.
const LowVoltageMillivolts = 3300

// Run watches the valve, meter and battery state streams and sends a
// Close command whenever a shutoff condition holds and the valve is not
// already closed or closing.
func Run(ctx context.Context, valveStates *notify.Value[valve.State], meterStates *notify.Value[meter.State], batteryStates *notify.Value[battery.State], valveCommands *notify.Value[valve.Command]) error {
	var (
		vs valve.State
		ms meter.State
		bs battery.State
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-valveStates.C():
			if v, ok := valveStates.TryTake(); ok {
				vs = v
			}

		case <-meterStates.C():
			if m, ok := meterStates.TryTake(); ok {
				ms = m
			}

		case <-batteryStates.C():
			if b, ok := batteryStates.TryTake(); ok {
				bs = b
			}
		}

		lowBattery := bs.Known && !bs.Powered && bs.Voltage < LowVoltageMillivolts
		if !ms.Leaking && !lowBattery {
			continue
		}
		if vs == valve.StateClosed || vs == valve.StateClosing {
			continue
		}

		if ms.Leaking {
			log.Warnf("emergency: leak detected, closing valve")
		} else {
			log.Warnf("emergency: battery at %dmV unpowered, closing valve", bs.Voltage)
		}
		valveCommands.Set(valve.CommandClose)
	}
}
