package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/ticker-relay/internal/relay"
)

var _ relay.Hub = (*Hub)(nil)

// Hub accepts downstream sockets and fans events out to them.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	handler relay.ClientHandler
	conns   map[string]*conn
	rooms   map[string]map[string]*conn
	closed  bool
	wg      sync.WaitGroup

	accepted   atomic.Int64
	broadcasts atomic.Int64
	roomEmits  atomic.Int64
}

// New creates a hub. Register it as an http.Handler on the socket path.
func New(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}

	h := &Hub{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[string]*conn),
		rooms:  make(map[string]map[string]*conn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetHandler registers the receiver of client subscription events.
func (h *Hub) SetHandler(handler relay.ClientHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

func (h *Hub) currentHandler() relay.ClientHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

// ServeHTTP upgrades the request and starts the connection pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed",
			"remote", r.RemoteAddr,
			"error", err,
		)
		return
	}

	c := newConn(uuid.NewString(), ws, h)
	user := r.URL.Query().Get(UserQueryParam)
	if !h.register(c, user) {
		ws.Close()
		return
	}
	h.accepted.Add(1)

	h.logger.Debug("client connected",
		"conn", c.id,
		"remote", r.RemoteAddr,
		"user", user,
	)

	go c.writePump()
	go c.pingPump()
	go c.readPump()
}

// register adds c and, if user is set, joins that room in the same step.
func (h *Hub) register(c *conn, user string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.conns[c.id] = c
	if user != "" {
		h.joinLocked(c, user)
	}
	h.wg.Add(3)
	return true
}

// unregister removes c from the hub and every room, then notifies the handler.
func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	if ok {
		delete(h.conns, c.id)
		for room := range c.rooms {
			h.leaveLocked(c, room)
		}
	}
	handler := h.handler
	h.mu.Unlock()

	c.shutdown()
	if !ok {
		return
	}

	if handler != nil {
		handler.OnClientDisconnect(c.id)
	}
	h.logger.Debug("client disconnected", "conn", c.id)
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		h.logger.Warn("failed to encode broadcast", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	for _, c := range h.conns {
		c.out.push(frame)
	}
	h.mu.RUnlock()

	h.broadcasts.Add(1)
}

// EmitToRoom sends an event to every client in room. Unknown rooms are a no-op.
func (h *Hub) EmitToRoom(room, event string, payload any) {
	h.mu.RLock()
	members := len(h.rooms[room])
	h.mu.RUnlock()
	if members == 0 {
		return
	}

	frame, err := encode(event, payload)
	if err != nil {
		h.logger.Warn("failed to encode room event",
			"room", room,
			"event", event,
			"error", err,
		)
		return
	}

	h.mu.RLock()
	for _, c := range h.rooms[room] {
		c.out.push(frame)
	}
	h.mu.RUnlock()

	h.roomEmits.Add(1)
}

// Join adds a connection to room. Returns false for unknown connections.
func (h *Hub) Join(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok || room == "" {
		return false
	}
	h.joinLocked(c, room)
	return true
}

// Leave removes a connection from room.
func (h *Hub) Leave(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	return h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *conn, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*conn)
		h.rooms[room] = members
	}
	members[c.id] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *conn, room string) bool {
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, in := members[c.id]; !in {
		return false
	}
	delete(members, c.id)
	delete(c.rooms, room)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	return true
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Stats returns current statistics.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		Connections: len(h.conns),
		Rooms:       len(h.rooms),
		Accepted:    h.accepted.Load(),
		Broadcasts:  h.broadcasts.Load(),
		RoomEmits:   h.roomEmits.Load(),
	}
	for _, c := range h.conns {
		q := c.out.stats()
		s.PendingFrames += q.Pending
		if q.Grows > s.MaxQueueGrowths {
			s.MaxQueueGrowths = q.Grows
		}
	}
	return s
}

// Close stops accepting sockets, closes every open one and waits for the
// connection goroutines to exit.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.logger.Info("closing hub", "connections", len(conns))

	// Draining the outbox makes the write pump send a close frame.
	for _, c := range conns {
		c.out.close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, c := range conns {
			c.ws.Close()
		}
		h.logger.Warn("hub close timed out")
		return ctx.Err()
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, origin)
}

func encode(event string, payload any) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Data: payload})
}
