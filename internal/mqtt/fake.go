package mqtt

import (
	"strings"
	"sync"
)

// FakeClient records published messages and lets tests inject inbound
// ones.
type FakeClient struct {
	mu sync.Mutex

	// Published contains every publish, in order.
	Published []PublishedMsg

	// Subs maps topic to registered handler.
	Subs map[string]func(topic string, payload []byte)

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// SubscribeError, if set, will be returned by Subscribe.
	SubscribeError error

	// Connected controls IsConnected.
	Connected bool

	// Closed tracks if Close was called.
	Closed bool
}

// PublishedMsg is one recorded publish.
type PublishedMsg struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Subs:      make(map[string]func(string, []byte)),
		Connected: true,
	}
}

// Publish records the message.
func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, PublishedMsg{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  append([]byte(nil), payload...),
	})
	return nil
}

// Subscribe records the handler.
func (f *FakeClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.Subs[topic] = handler
	return nil
}

// Deliver injects an inbound message to the handler subscribed to topic.
// Reports whether a handler was registered.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	handler := f.Subs[topic]
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(topic, payload)
	return true
}

// IsConnected reports the configured connection flag.
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// PublishedOn returns the publishes whose topic ends with suffix.
func (f *FakeClient) PublishedOn(suffix string) []PublishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PublishedMsg
	for _, m := range f.Published {
		if strings.HasSuffix(m.Topic, suffix) {
			out = append(out, m)
		}
	}
	return out
}
