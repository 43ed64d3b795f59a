package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/ticker-relay/internal/connection"
)

// fakeClient implements connection.Client in memory.
type fakeClient struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	sent      []connection.ControlFrame

	messages chan connection.TimestampedMessage
	errors   chan error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		messages: make(chan connection.TimestampedMessage, 100),
		errors:   make(chan error, 1),
	}
}

func (c *fakeClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return connection.ErrAlreadyClosed
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	return nil
}

func (c *fakeClient) Send(data []byte) error {
	var frame connection.ControlFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	return c.SendJSON(frame)
}

func (c *fakeClient) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return connection.ErrNotConnected
	}
	c.sent = append(c.sent, v.(connection.ControlFrame))
	return nil
}

func (c *fakeClient) Messages() <-chan connection.TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                         { return c.errors }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Frames() []connection.ControlFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]connection.ControlFrame, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Inject delivers a raw upstream frame.
func (c *fakeClient) Inject(data string) {
	c.messages <- connection.TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now()}
}

// Fail simulates a transport error (upstream close).
func (c *fakeClient) Fail() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.errors <- errors.New("connection reset by peer")
}

// fakeDialer hands out fakeClients and records dial times.
type fakeDialer struct {
	mu       sync.Mutex
	clients  []*fakeClient
	dialedAt []time.Time
}

func (d *fakeDialer) factory(cfg connection.ClientConfig, logger *slog.Logger) connection.Client {
	c := newFakeClient()
	d.mu.Lock()
	d.clients = append(d.clients, c)
	d.dialedAt = append(d.dialedAt, time.Now())
	d.mu.Unlock()
	return c
}

func (d *fakeDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func (d *fakeDialer) Client(i int) *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[i]
}

func (d *fakeDialer) DialedAt(i int) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialedAt[i]
}

type emitted struct {
	Room    string
	Event   string
	Payload any
}

// fakeHub implements Hub and records emissions.
type fakeHub struct {
	mu         sync.Mutex
	handler    ClientHandler
	broadcasts []emitted
	roomEmits  []emitted
}

func (h *fakeHub) SetHandler(handler ClientHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

func (h *fakeHub) Broadcast(event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, emitted{Event: event, Payload: payload})
}

func (h *fakeHub) EmitToRoom(room, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roomEmits = append(h.roomEmits, emitted{Room: room, Event: event, Payload: payload})
}

func (h *fakeHub) Broadcasts() []emitted {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]emitted, len(h.broadcasts))
	copy(out, h.broadcasts)
	return out
}

func (h *fakeHub) RoomEmits() []emitted {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]emitted, len(h.roomEmits))
	copy(out, h.roomEmits)
	return out
}

func (h *fakeHub) Handler() ClientHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handler
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}
