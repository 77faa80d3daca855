// Package mqtt publishes device state northbound and receives valve/meter
// commands, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/stats"
	"github.com/sweeney/water-guard/internal/valve"
)

// DefaultBaseTopic is the topic prefix for all device traffic.
const DefaultBaseTopic = "water/guard"

// Topic suffixes under the base topic.
const (
	TopicValveState   = "state/valve"
	TopicMeterState   = "state/meter"
	TopicStatsState   = "state/stats"
	TopicBatteryState = "state/battery"
	TopicSystem       = "system"
	TopicValveCommand = "cmd/valve"
	TopicMeterCommand = "cmd/meter"
)

// Publisher publishes messages to the broker.
type Publisher interface {
	// Publish sends payload on topic. Returns an error if publishing
	// fails (callers decide whether that is fatal).
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// Close disconnects from the broker.
	Close() error
}

// Subscriber receives messages from the broker.
type Subscriber interface {
	// Subscribe registers handler for topic. The handler runs on the
	// client's delivery goroutine and must not block.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event (STARTUP, SHUTDOWN).
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string
}

// ValvePayload is the JSON published on state/valve.
type ValvePayload struct {
	State string `json:"state"`
}

// MeterPayload is the JSON published on state/meter.
type MeterPayload struct {
	EdgesCount uint64 `json:"edges_count"`
	Armed      bool   `json:"armed"`
	Leaking    bool   `json:"leaking"`
}

// MeasurementPayload is one completed statistics window.
type MeasurementPayload struct {
	DurationSeconds int64  `json:"duration_seconds"`
	StartSeconds    int64  `json:"start_seconds"`
	EndSeconds      int64  `json:"end_seconds"`
	Edges           uint64 `json:"edges"`
}

// StatsPayload is the JSON published on state/stats.
type StatsPayload struct {
	TotalEdges   uint64               `json:"total_edges"`
	Measurements []MeasurementPayload `json:"measurements"`
}

// BatteryPayload is the JSON published on state/battery.
type BatteryPayload struct {
	Millivolts int  `json:"millivolts"`
	Powered    bool `json:"powered"`
	Known      bool `json:"known"`
}

// SystemPayload is the JSON published on the system topic.
type SystemPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatValve creates the state/valve payload.
func FormatValve(s valve.State) ([]byte, error) {
	return json.Marshal(ValvePayload{State: s.String()})
}

// FormatMeter creates the state/meter payload.
func FormatMeter(s meter.State) ([]byte, error) {
	return json.Marshal(MeterPayload{
		EdgesCount: s.EdgesCount,
		Armed:      s.Armed,
		Leaking:    s.Leaking,
	})
}

// FormatStats creates the state/stats payload. Only completed windows are
// included.
func FormatStats(s stats.State) ([]byte, error) {
	p := StatsPayload{TotalEdges: s.MostRecent.EdgesCount}
	for i, m := range s.Measurements {
		if m.IsZero() {
			continue
		}
		p.Measurements = append(p.Measurements, MeasurementPayload{
			DurationSeconds: int64(stats.Durations[i].Seconds()),
			StartSeconds:    int64(m.Start.Time.Seconds()),
			EndSeconds:      int64(m.End.Time.Seconds()),
			Edges:           m.End.EdgesCount - m.Start.EdgesCount,
		})
	}
	return json.Marshal(p)
}

// FormatBattery creates the state/battery payload.
func FormatBattery(s battery.State) ([]byte, error) {
	return json.Marshal(BatteryPayload{
		Millivolts: s.Voltage,
		Powered:    s.Powered,
		Known:      s.Known,
	})
}

// FormatSystem creates the system payload.
func FormatSystem(e SystemEvent) ([]byte, error) {
	return json.Marshal(SystemPayload{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Event:     e.Event,
		Reason:    e.Reason,
	})
}
