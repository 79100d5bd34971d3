package mqtt

import (
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is a paho.Token that has already completed.
type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// stubBroker stands in for the paho client. Only the methods Client uses
// are implemented; the embedded interface is nil.
type stubBroker struct {
	paho.Client

	mu        sync.Mutex
	open      bool
	published []string
	onCheck   func() // runs inside IsConnectionOpen after the state is read
}

func (b *stubBroker) IsConnectionOpen() bool {
	b.mu.Lock()
	open, hook := b.open, b.onCheck
	b.onCheck = nil
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	return open
}

func (b *stubBroker) setOpen(open bool) {
	b.mu.Lock()
	b.open = open
	b.mu.Unlock()
}

func (b *stubBroker) Publish(topic string, _ byte, _ bool, _ interface{}) paho.Token {
	b.mu.Lock()
	b.published = append(b.published, topic)
	b.mu.Unlock()
	return doneToken{}
}

func (b *stubBroker) sent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func newStubClient(b *stubBroker) *Client {
	return &Client{
		client: b,
		opts:   Options{Broker: "tcp://stub:1883", TagPrefix: DefaultTagPrefix, Source: "sia_local_control"},
		buffer: newRingBuffer(10),
		subs:   make(map[string]paho.MessageHandler),
	}
}

func TestClientBuffersWhileDisconnected(t *testing.T) {
	b := &stubBroker{}
	c := newStubClient(b)

	if err := c.PublishMetrics(MetricsMessage{Timestamp: time.Now(), Metrics: sampleMetrics()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Buffered() != 1 {
		t.Errorf("Buffered: got %d, want 1", c.Buffered())
	}
	if b.sent() != 0 {
		t.Errorf("sent while offline: got %d, want 0", b.sent())
	}

	b.setOpen(true)
	c.onConnect(b)

	if c.Buffered() != 0 {
		t.Errorf("Buffered after connect: got %d, want 0", c.Buffered())
	}
	if b.sent() != 1 || b.published[0] != "sia/tags/sia_local_control" {
		t.Errorf("replayed: got %v", b.published)
	}
}

func TestClientPublishesDirectlyWhenConnected(t *testing.T) {
	b := &stubBroker{open: true}
	c := newStubClient(b)

	if err := c.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Buffered() != 0 {
		t.Errorf("Buffered: got %d, want 0", c.Buffered())
	}
	if b.sent() != 1 || b.published[0] != "sia/tags/sia_local_control/system" {
		t.Errorf("published: got %v", b.published)
	}
}

// The connection comes up right after publish sees it down. The replay in
// onConnect must still pick up the message.
func TestClientReconnectDuringPublish(t *testing.T) {
	b := &stubBroker{}
	c := newStubClient(b)

	var wg sync.WaitGroup
	b.onCheck = func() {
		b.setOpen(true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.onConnect(b)
		}()
		// Give onConnect a chance to drain before publish continues.
		time.Sleep(10 * time.Millisecond)
	}

	if err := c.PublishMetrics(MetricsMessage{Timestamp: time.Now(), Metrics: sampleMetrics()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wg.Wait()

	if c.Buffered() != 0 {
		t.Errorf("message stranded in buffer: Buffered=%d", c.Buffered())
	}
	if b.sent() != 1 {
		t.Errorf("sent: got %d, want 1", b.sent())
	}
}
