package mqtt

import (
	"context"
	"fmt"
	"strings"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/stats"
	"github.com/sweeney/water-guard/internal/valve"
)

// RunSend races the forwarded state streams and publishes each committed
// value as retained JSON under base. Valve state goes out QoS 1 — it is
// the one message a remote really must not miss; the rest are QoS 0 since
// a newer retained value always follows.
func RunSend(ctx context.Context, pub Publisher, base string,
	valveStates *notify.Value[valve.State],
	meterStates *notify.Value[meter.State],
	statsStates *notify.Value[stats.State],
	batteryStates *notify.Value[battery.State]) error {

	for {
		var (
			topic   string
			qos     byte
			payload []byte
			err     error
		)

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-valveStates.C():
			s, ok := valveStates.TryTake()
			if !ok {
				continue
			}
			topic, qos = TopicValveState, 1
			payload, err = FormatValve(s)

		case <-meterStates.C():
			s, ok := meterStates.TryTake()
			if !ok {
				continue
			}
			topic, qos = TopicMeterState, 0
			payload, err = FormatMeter(s)

		case <-statsStates.C():
			s, ok := statsStates.TryTake()
			if !ok {
				continue
			}
			topic, qos = TopicStatsState, 0
			payload, err = FormatStats(s)

		case <-batteryStates.C():
			s, ok := batteryStates.TryTake()
			if !ok {
				continue
			}
			topic, qos = TopicBatteryState, 0
			payload, err = FormatBattery(s)
		}

		if err != nil {
			return fmt.Errorf("format %s: %w", topic, err)
		}
		if err := pub.Publish(base+"/"+topic, qos, true, payload); err != nil {
			return err
		}
	}
}

// RunReceive subscribes to the command topics, forwarding parsed commands
// into the mailboxes and pinging the keepalive activity signal. Unparsable
// payloads are logged and dropped. Returns when ctx is done.
func RunReceive(ctx context.Context, sub Subscriber, base string,
	valveCommands *notify.Value[valve.Command],
	meterCommands *notify.Value[meter.Command],
	activity *notify.Signal) error {

	err := sub.Subscribe(base+"/"+TopicValveCommand, 1, func(topic string, payload []byte) {
		switch strings.ToUpper(strings.TrimSpace(string(payload))) {
		case "OPEN":
			valveCommands.Set(valve.CommandOpen)
		case "CLOSE":
			valveCommands.Set(valve.CommandClose)
		default:
			log.Warnf("mqtt: unknown valve command %q", payload)
			return
		}
		activity.Notify()
	})
	if err != nil {
		return err
	}

	err = sub.Subscribe(base+"/"+TopicMeterCommand, 1, func(topic string, payload []byte) {
		switch strings.ToUpper(strings.TrimSpace(string(payload))) {
		case "ARM":
			meterCommands.Set(meter.CommandArm)
		case "DISARM":
			meterCommands.Set(meter.CommandDisarm)
		default:
			log.Warnf("mqtt: unknown meter command %q", payload)
			return
		}
		activity.Notify()
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

// PublishSystem sends a lifecycle event on the system topic, retained.
func PublishSystem(pub Publisher, base string, event SystemEvent) error {
	payload, err := FormatSystem(event)
	if err != nil {
		return fmt.Errorf("format system event: %w", err)
	}
	return pub.Publish(base+"/"+TopicSystem, 1, true, payload)
}
