package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/sia-local-control/internal/logic"
)

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 100

// Options configures a Client.
type Options struct {
	Broker    string
	ClientID  string // empty: "<App>-<uuid>"
	App       string
	TagPrefix string
	Source    logic.SourceRef // topic source for PublishMetrics/PublishSystem
	Buffer    int
}

func (o Options) clientID() string {
	if o.ClientID != "" {
		return o.ClientID
	}
	app := o.App
	if app == "" {
		app = "sia"
	}
	return app + "-" + uuid.NewString()
}

// Client publishes to and subscribes on an actual MQTT broker.
// Messages published while disconnected are buffered and replayed on reconnect.
type Client struct {
	client paho.Client
	opts   Options

	mu     sync.Mutex
	buffer *ringBuffer
	subs   map[string]paho.MessageHandler
}

// NewClient creates a client for the given broker. The connection is retried
// in the background; a broker that is down at startup is not fatal.
func NewClient(o Options) (*Client, error) {
	if o.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if o.TagPrefix == "" {
		o.TagPrefix = DefaultTagPrefix
	}
	if o.Buffer <= 0 {
		o.Buffer = DefaultBufferSize
	}

	c := &Client{
		opts:   o,
		buffer: newRingBuffer(o.Buffer),
		subs:   make(map[string]paho.MessageHandler),
	}

	popts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.clientID()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	if o.Source != "" {
		will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
		if err == nil {
			popts.SetWill(SystemTopic(o.TagPrefix, o.Source), string(will), 1, true)
		}
	}

	c.client = paho.NewClient(popts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: %s not reachable yet, retrying in background", o.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

// onConnect restores subscriptions and replays buffered messages.
func (c *Client) onConnect(client paho.Client) {
	c.mu.Lock()
	subs := make(map[string]paho.MessageHandler, len(c.subs))
	for k, v := range c.subs {
		subs[k] = v
	}
	pending := c.buffer.drainAll()
	c.mu.Unlock()

	log.Printf("mqtt: connected to %s", c.opts.Broker)

	for filter, handler := range subs {
		token := client.Subscribe(filter, 1, handler)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("mqtt: resubscribe %s: %v", filter, token.Error())
		}
	}

	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, msg := range pending {
		if err := c.send(msg); err != nil {
			log.Printf("mqtt: replay to %s: %v", msg.topic, err)
		}
	}
}

// SubscribeTags feeds every message on the tag topics into sink.
func (c *Client) SubscribeTags(sink TagSink) error {
	prefix := c.opts.TagPrefix
	filter := TagFilter(prefix)
	handler := func(_ paho.Client, m paho.Message) {
		if err := HandleTagMessage(sink, prefix, m.Topic(), m.Payload()); err != nil {
			log.Printf("mqtt: tag message on %s: %v", m.Topic(), err)
		}
	}

	c.mu.Lock()
	c.subs[filter] = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		// onConnect subscribes once the connection is up.
		return nil
	}
	token := c.client.Subscribe(filter, 1, handler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", filter)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	return nil
}

// PublishMetrics sends an aggregate to the control app's tag topic.
func (c *Client) PublishMetrics(msg MetricsMessage) error {
	payload, err := FormatMetricsPayload(msg)
	if err != nil {
		return fmt.Errorf("format metrics payload: %w", err)
	}
	// QoS 0, retained so late subscribers see the last aggregate
	return c.publish(bufferedMsg{
		topic:    TagTopic(c.opts.TagPrefix, c.opts.Source),
		payload:  payload,
		qos:      0,
		retained: true,
	})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *Client) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return c.publish(bufferedMsg{
		topic:    SystemTopic(c.opts.TagPrefix, c.opts.Source),
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

// publish sends msg, or buffers it while the connection is down. The state
// check and the push happen under c.mu so onConnect cannot drain in between.
func (c *Client) publish(msg bufferedMsg) error {
	c.mu.Lock()
	if !c.client.IsConnectionOpen() {
		c.buffer.push(msg)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.send(msg)
}

func (c *Client) send(msg bufferedMsg) error {
	token := c.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (c *Client) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.len()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
