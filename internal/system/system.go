// Package system is the composition root: it owns every signal, mailbox
// and state container, wires the propagation graph between them, and
// runs the tasks in three fixed-capacity domains.
package system

import (
	"context"
	"net"
	"runtime"
	"time"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/button"
	"github.com/sweeney/water-guard/internal/emergency"
	"github.com/sweeney/water-guard/internal/keepalive"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/mqtt"
	"github.com/sweeney/water-guard/internal/netmon"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/screen"
	"github.com/sweeney/water-guard/internal/state"
	"github.com/sweeney/water-guard/internal/stats"
	"github.com/sweeney/water-guard/internal/valve"
	"github.com/sweeney/water-guard/internal/web"
)

// Broker is the full MQTT client surface the system needs.
type Broker interface {
	mqtt.Publisher
	mqtt.Subscriber
	mqtt.ConnectionStatus
}

// Options carries the peripherals and service endpoints the system runs
// against. Everything is an interface, so tests compose a full system
// from fakes.
type Options struct {
	ValvePins  valve.Pins
	Counter    meter.Counter
	ADC        battery.ADC
	PowerSense battery.PowerSense
	Link       netmon.LinkStatus
	Display    screen.Display

	Broker    Broker
	BaseTopic string

	// HTTPAddr is the status server address. Empty disables the server.
	HTTPAddr string

	// Listener overrides HTTPAddr binding. Used by tests.
	Listener net.Listener
}

// System owns the reactive plumbing. Containers and command mailboxes
// are exported so the composition in main (and tests) can seed or
// inspect them; each mailbox still has exactly one consuming task.
type System struct {
	opts Options

	ValveState   *state.Container[valve.State]
	MeterState   *state.Container[meter.State]
	StatsState   *state.Container[stats.State]
	BatteryState *state.Container[battery.State]
	Remaining    *state.Container[keepalive.RemainingTime]
	Conn         *state.Container[netmon.State]

	ValveCommands *notify.Value[valve.Command]
	MeterCommands *notify.Value[meter.Command]

	// Activity feeds the keepalive: button presses and network commands.
	Activity *notify.Signal

	// Raw edge signals, notified from GPIO interrupt context.
	Button1Raw *notify.Signal
	Button2Raw *notify.Signal
	Button3Raw *notify.Signal

	spinCommands *notify.Value[valve.SpinCommand]
	spinDone     *notify.Signal

	// Single-consumer forwards of committed state.
	mqttValve   *notify.Value[valve.State]
	mqttMeter   *notify.Value[meter.State]
	mqttStats   *notify.Value[stats.State]
	mqttBattery *notify.Value[battery.State]

	emgValve   *notify.Value[valve.State]
	emgMeter   *notify.Value[meter.State]
	emgBattery *notify.Value[battery.State]

	statsMeter *notify.Value[meter.State]

	Screen *screen.Screen
	Web    *web.Server
}

// New wires a system from the given peripherals and services.
func New(opts Options) *System {
	s := &System{
		opts: opts,

		ValveState:   state.NewContainer[valve.State](),
		MeterState:   state.NewContainer[meter.State](),
		StatsState:   state.NewContainer[stats.State](),
		BatteryState: state.NewContainer[battery.State](),
		Remaining:    state.NewContainer[keepalive.RemainingTime](),
		Conn:         state.NewContainer[netmon.State](),

		ValveCommands: notify.NewValue[valve.Command](),
		MeterCommands: notify.NewValue[meter.Command](),

		Activity: notify.NewSignal(),

		Button1Raw: notify.NewSignal(),
		Button2Raw: notify.NewSignal(),
		Button3Raw: notify.NewSignal(),

		spinCommands: notify.NewValue[valve.SpinCommand](),
		spinDone:     notify.NewSignal(),

		mqttValve:   notify.NewValue[valve.State](),
		mqttMeter:   notify.NewValue[meter.State](),
		mqttStats:   notify.NewValue[stats.State](),
		mqttBattery: notify.NewValue[battery.State](),

		emgValve:   notify.NewValue[valve.State](),
		emgMeter:   notify.NewValue[meter.State](),
		emgBattery: notify.NewValue[battery.State](),

		statsMeter: notify.NewValue[meter.State](),
	}

	s.Screen = screen.New(s.ValveState, s.MeterState, s.StatsState,
		s.BatteryState, s.Remaining, s.ValveCommands, s.MeterCommands)

	if opts.HTTPAddr != "" || opts.Listener != nil {
		s.Web = web.New(opts.HTTPAddr, web.Containers{
			Valve:   s.ValveState,
			Meter:   s.MeterState,
			Stats:   s.StatsState,
			Battery: s.BatteryState,
			Conn:    s.Conn,
		}, s.ValveCommands, s.MeterCommands, s.Activity)
	}

	return s
}

func (s *System) valveSinks() []func(valve.State) {
	sinks := []func(valve.State){
		func(valve.State) { s.Screen.ValveChanged.Notify() },
		s.mqttValve.Sink(),
		s.emgValve.Sink(),
	}
	if s.Web != nil {
		sinks = append(sinks, s.Web.ValveSink())
	}
	return sinks
}

func (s *System) meterSinks() []func(meter.State) {
	sinks := []func(meter.State){
		func(meter.State) { s.Screen.MeterChanged.Notify() },
		s.mqttMeter.Sink(),
		s.emgMeter.Sink(),
		s.statsMeter.Sink(),
	}
	if s.Web != nil {
		sinks = append(sinks, s.Web.MeterSink())
	}
	return sinks
}

func (s *System) statsSinks() []func(stats.State) {
	sinks := []func(stats.State){
		func(stats.State) { s.Screen.StatsChanged.Notify() },
		s.mqttStats.Sink(),
	}
	if s.Web != nil {
		sinks = append(sinks, s.Web.StatsSink())
	}
	return sinks
}

func (s *System) batterySinks() []func(battery.State) {
	sinks := []func(battery.State){
		func(battery.State) { s.Screen.BatteryChanged.Notify() },
		s.mqttBattery.Sink(),
		s.emgBattery.Sink(),
	}
	if s.Web != nil {
		sinks = append(sinks, s.Web.BatterySink())
	}
	return sinks
}

func (s *System) connSinks() []func(netmon.State) {
	if s.Web == nil {
		return nil
	}
	return []func(netmon.State){s.Web.ConnSink()}
}

// Run registers every task and blocks until the system shuts down:
// first task failure, parent cancellation, or a keepalive quit request.
// Returns nil on a clean shutdown.
func (s *System) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	after := time.After
	now := func() time.Duration { return time.Duration(time.Now().UnixNano()) }

	domainA := NewDomain("A")
	domainB := NewDomain("B")
	domainC := NewDomain("C")

	register := []struct {
		domain *Domain
		name   string
		run    func(context.Context) error
	}{
		// Domain A: hardware-pinned reactive core.
		{domainA, "valve-control", func(ctx context.Context) error {
			return valve.RunControl(ctx, s.ValveCommands, s.spinCommands, s.spinDone, s.ValveState, s.valveSinks()...)
		}},
		{domainA, "valve-spin", func(ctx context.Context) error {
			return valve.RunSpin(ctx, after, s.opts.ValvePins, s.spinCommands, s.spinDone)
		}},
		{domainA, "meter", func(ctx context.Context) error {
			return meter.Run(ctx, after, s.opts.Counter, s.MeterCommands, s.MeterState, s.meterSinks()...)
		}},
		{domainA, "button1", func(ctx context.Context) error {
			return button.Run(ctx, after, s.Button1Raw, s.Screen.Button1Pressed, s.Activity)
		}},
		{domainA, "button3", func(ctx context.Context) error {
			return button.Run(ctx, after, s.Button3Raw, s.Screen.Button3Pressed, s.Activity)
		}},

		// Domain B: derived state and the local UI.
		{domainB, "stats", func(ctx context.Context) error {
			return stats.Run(ctx, after, now, s.statsMeter, s.StatsState, s.statsSinks()...)
		}},
		{domainB, "battery", func(ctx context.Context) error {
			return battery.Run(ctx, after, s.opts.ADC, s.opts.PowerSense, s.BatteryState, s.batterySinks()...)
		}},
		{domainB, "button2", func(ctx context.Context) error {
			return button.Run(ctx, after, s.Button2Raw, s.Screen.Button2Pressed, s.Activity)
		}},
		{domainB, "emergency", func(ctx context.Context) error {
			return emergency.Run(ctx, s.emgValve, s.emgMeter, s.emgBattery, s.ValveCommands)
		}},
		{domainB, "keepalive", func(ctx context.Context) error {
			return keepalive.Run(ctx, after, now, s.Activity, s.BatteryState, s.Remaining, cancel,
				func(keepalive.RemainingTime) { s.Screen.RemainingChanged.Notify() })
		}},
		{domainB, "screen-input", s.Screen.RunInput},
		{domainB, "screen-draw", func(ctx context.Context) error {
			return s.Screen.RunDraw(ctx, s.opts.Display)
		}},

		// Domain C: network services.
		{domainC, "mqtt-send", func(ctx context.Context) error {
			return mqtt.RunSend(ctx, s.opts.Broker, s.opts.BaseTopic, s.mqttValve, s.mqttMeter, s.mqttStats, s.mqttBattery)
		}},
		{domainC, "mqtt-receive", func(ctx context.Context) error {
			return mqtt.RunReceive(ctx, s.opts.Broker, s.opts.BaseTopic, s.ValveCommands, s.MeterCommands, s.Activity)
		}},
		{domainC, "netmon", func(ctx context.Context) error {
			return netmon.Run(ctx, after, s.opts.Link, s.opts.Broker, s.Conn, s.connSinks()...)
		}},
	}
	for _, r := range register {
		if err := r.domain.Add(r.name, r.run); err != nil {
			return err
		}
	}
	if s.Web != nil {
		err := domainC.Add("web", func(ctx context.Context) error {
			return s.Web.Run(ctx, s.opts.Listener)
		})
		if err != nil {
			return err
		}
	}

	// B and C run on their own OS-thread-locked runners; A stays on the
	// caller, which main keeps pinned for the GPIO-driven core.
	errB := make(chan error, 1)
	errC := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		err := domainB.Run(ctx)
		cancel()
		errB <- err
	}()
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		err := domainC.Run(ctx)
		cancel()
		errC <- err
	}()

	err := domainA.Run(ctx)
	cancel()

	if errB := <-errB; err == nil {
		err = errB
	}
	if errC := <-errC; err == nil {
		err = errC
	}
	return err
}
