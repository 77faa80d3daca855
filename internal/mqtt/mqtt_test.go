package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/stats"
	"github.com/sweeney/water-guard/internal/valve"
)

func TestFormatValve(t *testing.T) {
	payload, err := FormatValve(valve.StateOpening)
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	var p ValvePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.State != "OPENING" {
		t.Fatalf("state %q, want OPENING", p.State)
	}
}

func TestFormatStatsSkipsEmptyWindows(t *testing.T) {
	var s stats.State
	s.MostRecent = stats.FlowSnapshot{Time: 400 * time.Second, EdgesCount: 50}
	s.Measurements[0] = stats.FlowMeasurement{
		Start: stats.FlowSnapshot{Time: 0, EdgesCount: 10},
		End:   stats.FlowSnapshot{Time: 300 * time.Second, EdgesCount: 40},
	}

	payload, err := FormatStats(s)
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	var p StatsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.TotalEdges != 50 {
		t.Fatalf("total %d, want 50", p.TotalEdges)
	}
	if len(p.Measurements) != 1 {
		t.Fatalf("measurements %v, want only the completed window", p.Measurements)
	}
	m := p.Measurements[0]
	if m.DurationSeconds != 300 || m.Edges != 30 || m.EndSeconds != 300 {
		t.Fatalf("measurement %+v", m)
	}
}

func TestSendTaskPublishesRetainedStates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewFakeClient()
	valveStates := notify.NewValue[valve.State]()
	meterStates := notify.NewValue[meter.State]()
	statsStates := notify.NewValue[stats.State]()
	batteryStates := notify.NewValue[battery.State]()

	go RunSend(ctx, client, "water/guard", valveStates, meterStates, statsStates, batteryStates)

	valveStates.Set(valve.StateClosed)
	waitPublished(t, client, TopicValveState)

	msgs := client.PublishedOn(TopicValveState)
	if msgs[0].Topic != "water/guard/state/valve" {
		t.Fatalf("topic %q", msgs[0].Topic)
	}
	if !msgs[0].Retained || msgs[0].QoS != 1 {
		t.Fatalf("valve state must be retained QoS 1: %+v", msgs[0])
	}

	batteryStates.Set(battery.State{Voltage: 3900, Known: true})
	waitPublished(t, client, TopicBatteryState)

	bmsgs := client.PublishedOn(TopicBatteryState)
	var bp BatteryPayload
	if err := json.Unmarshal(bmsgs[0].Payload, &bp); err != nil {
		t.Fatalf("unmarshal battery: %v", err)
	}
	if bp.Millivolts != 3900 || !bp.Known {
		t.Fatalf("battery payload %+v", bp)
	}
}

func waitPublished(t *testing.T, client *FakeClient, suffix string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(client.PublishedOn(suffix)) > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("nothing published on %s", suffix)
}

func TestReceiveTaskForwardsCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewFakeClient()
	valveCommands := notify.NewValue[valve.Command]()
	meterCommands := notify.NewValue[meter.Command]()
	activity := notify.NewSignal()

	go RunReceive(ctx, client, "water/guard", valveCommands, meterCommands, activity)

	waitSubscribed(t, client, "water/guard/cmd/valve")
	waitSubscribed(t, client, "water/guard/cmd/meter")

	if !client.Deliver("water/guard/cmd/valve", []byte("CLOSE")) {
		t.Fatal("no valve command handler")
	}
	takeCtx, takeCancel := context.WithTimeout(ctx, time.Second)
	defer takeCancel()
	if cmd, err := valveCommands.Take(takeCtx); err != nil || cmd != valve.CommandClose {
		t.Fatalf("valve command %v err %v", cmd, err)
	}

	client.Deliver("water/guard/cmd/meter", []byte("arm"))
	takeCtx2, takeCancel2 := context.WithTimeout(ctx, time.Second)
	defer takeCancel2()
	if cmd, err := meterCommands.Take(takeCtx2); err != nil || cmd != meter.CommandArm {
		t.Fatalf("meter command %v err %v", cmd, err)
	}

	// Commands count as activity for the keepalive.
	actCtx, actCancel := context.WithTimeout(ctx, time.Second)
	defer actCancel()
	if err := activity.Wait(actCtx); err != nil {
		t.Fatal("activity not pinged")
	}
}

func TestReceiveTaskDropsGarbage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewFakeClient()
	valveCommands := notify.NewValue[valve.Command]()
	meterCommands := notify.NewValue[meter.Command]()
	activity := notify.NewSignal()

	go RunReceive(ctx, client, "water/guard", valveCommands, meterCommands, activity)
	waitSubscribed(t, client, "water/guard/cmd/valve")

	client.Deliver("water/guard/cmd/valve", []byte("EXPLODE"))

	time.Sleep(20 * time.Millisecond)
	if _, ok := valveCommands.TryTake(); ok {
		t.Fatal("garbage payload produced a command")
	}
	actCtx, actCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer actCancel()
	if err := activity.Wait(actCtx); err == nil {
		t.Fatal("garbage payload counted as activity")
	}
}

func waitSubscribed(t *testing.T, client *FakeClient, topic string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		client.mu.Lock()
		_, ok := client.Subs[topic]
		client.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("never subscribed to %s", topic)
}

func TestPublishSystem(t *testing.T) {
	client := NewFakeClient()

	err := PublishSystem(client, "water/guard", SystemEvent{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Event:     "STARTUP",
	})
	if err != nil {
		t.Fatalf("publish system: %v", err)
	}

	msgs := client.PublishedOn(TopicSystem)
	if len(msgs) != 1 {
		t.Fatalf("published %d system events", len(msgs))
	}
	var p SystemPayload
	if err := json.Unmarshal(msgs[0].Payload, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Event != "STARTUP" || p.Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("payload %+v", p)
	}
}
