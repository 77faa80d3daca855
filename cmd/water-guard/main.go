// Command water-guard runs the shutoff valve and water meter controller:
// reactive valve control, pulse counting and leak detection, flow
// statistics, a front-panel screen, and MQTT/web exposure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/config"
	"github.com/sweeney/water-guard/internal/gpio"
	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/mqtt"
	"github.com/sweeney/water-guard/internal/netmon"
	"github.com/sweeney/water-guard/internal/screen"
	"github.com/sweeney/water-guard/internal/system"
	"github.com/sweeney/water-guard/internal/valve"
)

// Wake reasons. The power supervisor that brings the device out of deep
// sleep passes the cause on the command line; "leak" means the pulse
// counter tripped its wakeup threshold autonomously.
const (
	WakeUnknown = "unknown"
	WakeButton  = "button"
	WakeLeak    = "leak"
)

const envWakeReason = "WATERGUARD_WAKE_REASON"

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	debug := flag.Bool("debug", false, "enable debug logging")
	printState := flag.Bool("print-state", false, "print the pulse counter state and exit")
	wakeReason := flag.String("wake-reason", "", "why the device woke (button, leak)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}

	log.Init(cfg.Debug)
	defer log.Sync()

	wake := resolveWakeReason(*wakeReason, os.Getenv(envWakeReason))

	if err := run(cfg, *printState, wake); err != nil {
		log.Errorf("fatal: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

// resolveWakeReason picks the flag over the environment, falling back to
// unknown.
func resolveWakeReason(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue != "" {
		return envValue
	}
	return WakeUnknown
}

func run(cfg config.Config, printState bool, wake string) error {
	counter, err := meter.NewSerialCounter(cfg.MeterPort, cfg.MeterBaud)
	if err != nil {
		return fmt.Errorf("init pulse counter: %w", err)
	}
	defer counter.Close()

	if printState {
		if err := counter.Start(); err != nil {
			return fmt.Errorf("start pulse counter: %w", err)
		}
		data, err := counter.Data()
		if err != nil {
			return fmt.Errorf("read pulse counter: %w", err)
		}
		fmt.Print(formatCounterState(data))
		return nil
	}

	pins, closePins, err := openValvePins(cfg)
	if err != nil {
		return err
	}
	defer closePins()

	// A leak wake shuts the water off before anything else is allowed to
	// fail.
	if wake == WakeLeak {
		log.Warnf("woke on leak trigger, closing valve")
		if err := valve.EmergencyClose(pins, time.Sleep); err != nil {
			return err
		}
	}

	broker, err := mqtt.NewClient(cfg.Broker, cfg.ClientID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer broker.Close()

	display, closeDisplay, err := openDisplay(cfg)
	if err != nil {
		return err
	}
	defer closeDisplay()

	sys := system.New(system.Options{
		ValvePins:  pins,
		Counter:    counter,
		ADC:        &battery.SysfsADC{Path: cfg.BatteryADCPath},
		PowerSense: &battery.SysfsPowerSense{Path: cfg.PowerSensePath},
		Link:       &netmon.SysfsLink{Iface: cfg.Iface},
		Display:    display,
		Broker:     broker,
		BaseTopic:  cfg.BaseTopic,
		HTTPAddr:   cfg.HTTPAddr,
	})

	buttons, err := openButtons(cfg, sys)
	if err != nil {
		return err
	}
	defer func() {
		for _, b := range buttons {
			b.Close()
		}
	}()

	if err := mqtt.PublishSystem(broker, cfg.BaseTopic, mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "STARTUP",
		Reason:    wake,
	}); err != nil {
		log.Warnf("startup event: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("started: broker=%s http=%s wake=%s", cfg.Broker, cfg.HTTPAddr, wake)

	// The reactive core runs on this goroutine, pinned to its OS thread.
	runtime.LockOSThread()
	runErr := sys.Run(ctx)

	reason := "QUIT"
	if ctx.Err() != nil {
		reason = "SIGNAL"
	}
	if err := mqtt.PublishSystem(broker, cfg.BaseTopic, mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
	}); err != nil {
		log.Warnf("shutdown event: %v", err)
	}

	return runErr
}

func openValvePins(cfg config.Config) (valve.Pins, func(), error) {
	power, err := gpio.NewRealOutput(cfg.GPIOChip, cfg.PinValvePower)
	if err != nil {
		return valve.Pins{}, nil, fmt.Errorf("init valve power pin: %w", err)
	}
	open, err := gpio.NewRealOutput(cfg.GPIOChip, cfg.PinValveOpen)
	if err != nil {
		power.Close()
		return valve.Pins{}, nil, fmt.Errorf("init valve open pin: %w", err)
	}
	closing, err := gpio.NewRealOutput(cfg.GPIOChip, cfg.PinValveClose)
	if err != nil {
		power.Close()
		open.Close()
		return valve.Pins{}, nil, fmt.Errorf("init valve close pin: %w", err)
	}

	pins := valve.Pins{Power: power, Open: open, Close: closing}
	return pins, func() {
		power.Close()
		open.Close()
		closing.Close()
	}, nil
}

func openButtons(cfg config.Config, sys *system.System) ([]gpio.Button, error) {
	var buttons []gpio.Button
	for _, b := range []struct {
		pin     int
		pressed func()
	}{
		{cfg.PinButton1, sys.Button1Raw.Notify},
		{cfg.PinButton2, sys.Button2Raw.Notify},
		{cfg.PinButton3, sys.Button3Raw.Notify},
	} {
		btn, err := gpio.NewRealButton(cfg.GPIOChip, b.pin, b.pressed)
		if err != nil {
			for _, open := range buttons {
				open.Close()
			}
			return nil, fmt.Errorf("init button pin %d: %w", b.pin, err)
		}
		buttons = append(buttons, btn)
	}
	return buttons, nil
}

func openDisplay(cfg config.Config) (screen.Display, func(), error) {
	var out io.Writer = os.Stdout
	cleanup := func() {}

	if cfg.DisplayDev != "" {
		f, err := os.OpenFile(cfg.DisplayDev, os.O_WRONLY, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("open display %s: %w", cfg.DisplayDev, err)
		}
		out = f
		cleanup = func() { f.Close() }
	}

	return screen.NewTextFrame(cfg.DisplayCols, cfg.DisplayRows, out), cleanup, nil
}

func formatCounterState(data meter.CounterData) string {
	armed := "no"
	if data.WakeupEdges > 0 {
		armed = "yes"
	}
	return fmt.Sprintf("edges: %d\narmed: %s\n", data.EdgesCount, armed)
}
