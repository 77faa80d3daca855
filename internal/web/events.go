package web

import (
	"encoding/json"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/mqtt"
	"github.com/sweeney/water-guard/internal/netmon"
	"github.com/sweeney/water-guard/internal/stats"
	"github.com/sweeney/water-guard/internal/valve"
)

// Event is one outbound websocket message. Data carries the same JSON
// shapes the broker sees, so a browser and an MQTT consumer read the
// same payloads.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	ID   uint64          `json:"id,omitempty"`
}

// Request is one inbound websocket message.
type Request struct {
	ID      uint64 `json:"id"`
	Type    string `json:"type"`
	Command string `json:"command"`
}

// ConnPayload is the JSON for connectivity events.
type ConnPayload struct {
	NetUp    bool `json:"net_up"`
	BrokerUp bool `json:"broker_up"`
}

func valveEvent(s valve.State) ([]byte, error) {
	data, err := mqtt.FormatValve(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: "valve", Data: data})
}

func meterEvent(s meter.State) ([]byte, error) {
	data, err := mqtt.FormatMeter(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: "meter", Data: data})
}

func statsEvent(s stats.State) ([]byte, error) {
	data, err := mqtt.FormatStats(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: "stats", Data: data})
}

func batteryEvent(s battery.State) ([]byte, error) {
	data, err := mqtt.FormatBattery(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: "battery", Data: data})
}

func connEvent(s netmon.State) ([]byte, error) {
	data, err := json.Marshal(ConnPayload{NetUp: s.NetUp, BrokerUp: s.BrokerUp})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: "conn", Data: data})
}

func ackEvent(id uint64) []byte {
	data, _ := json.Marshal(Event{Type: "ack", ID: id})
	return data
}
