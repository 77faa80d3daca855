package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/water-guard/internal/log"
)

// bufferCapacity bounds the offline replay buffer. A battery device can be
// offline for a while; state publishes are retained/latest-wins anyway, so
// a modest FIFO is enough.
const bufferCapacity = 64

// Client is the real broker client. Publishes issued while disconnected
// are held in a bounded replay queue and re-sent in order once the
// connection comes back.
type Client struct {
	client paho.Client

	mu     sync.Mutex
	buffer *replayQueue
	subs   []subscription
}

type subscription struct {
	topic   string
	qos     byte
	handler func(topic string, payload []byte)
}

// NewClient creates a client connected to the given broker. The connection
// retries in the background; a broker that is down at startup does not
// fail construction.
func NewClient(broker, clientID string) (*Client, error) {
	c := &Client{buffer: newReplayQueue(bufferCapacity)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnf("mqtt: connection lost: %v", err)
		})

	c.client = paho.NewClient(opts)

	token := c.client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker: %w", token.Error())
	}

	return c, nil
}

// onConnect replays buffered publishes and re-registers subscriptions
// after every (re)connect.
func (c *Client) onConnect(client paho.Client) {
	log.Infof("mqtt: connected")

	c.mu.Lock()
	pending := c.buffer.takeAll()
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		s := sub
		token := client.Subscribe(s.topic, s.qos, func(_ paho.Client, msg paho.Message) {
			s.handler(msg.Topic(), msg.Payload())
		})
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Errorf("mqtt: resubscribe %s: %v", s.topic, token.Error())
		}
	}

	if len(pending) > 0 {
		log.Infof("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, msg := range pending {
		token := client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Errorf("mqtt: replay publish %s: %v", msg.topic, token.Error())
		}
	}
}

// Publish sends payload on topic, buffering it for replay if the broker is
// unreachable.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnected() {
		c.mu.Lock()
		c.buffer.add(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		return nil
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic, now and after every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	c.mu.Lock()
	c.subs = append(c.subs, subscription{topic: topic, qos: qos, handler: handler})
	c.mu.Unlock()

	if !c.client.IsConnected() {
		// onConnect will register it.
		return nil
	}

	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
