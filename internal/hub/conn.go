package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn is one downstream socket.
type conn struct {
	id  string
	ws  *websocket.Conn
	hub *Hub
	out *outbox

	rooms map[string]struct{} // guarded by hub.mu

	done     chan struct{}
	doneOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, h *Hub) *conn {
	return &conn{
		id:    id,
		ws:    ws,
		hub:   h,
		out:   newOutbox(h.cfg.QueueSize),
		rooms: make(map[string]struct{}),
		done:  make(chan struct{}),
	}
}

// shutdown stops the ping pump and lets the write pump drain and close.
func (c *conn) shutdown() {
	c.doneOnce.Do(func() {
		c.out.close()
		close(c.done)
	})
}

func (c *conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.hub.wg.Done()
	}()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.logger.Debug("client read error", "conn", c.id, "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *conn) writePump() {
	defer func() {
		c.ws.Close()
		c.hub.wg.Done()
	}()

	for {
		frame, ok := c.out.pop()
		if !ok {
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}

		c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.hub.logger.Debug("client write failed", "conn", c.id, "error", err)
			return
		}
	}
}

// pingPump keeps the read deadline alive on idle sockets.
func (c *conn) pingPump() {
	defer c.hub.wg.Done()

	ticker := time.NewTicker(c.hub.cfg.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.hub.cfg.WriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.hub.logger.Debug("client ping failed", "conn", c.id, "error", err)
				}
				return
			}
		}
	}
}

// handle dispatches one client frame. Bad input is logged and ignored.
func (c *conn) handle(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.hub.logger.Debug("ignoring malformed client frame", "conn", c.id, "error", err)
		return
	}

	switch f.Event {
	case EventSubscribe, EventUnsubscribe:
		symbols, err := parseSymbols(f.Data)
		if err != nil || len(symbols) == 0 {
			c.hub.logger.Debug("ignoring subscription frame without symbols",
				"conn", c.id,
				"event", f.Event,
			)
			return
		}
		handler := c.hub.currentHandler()
		if handler == nil {
			return
		}
		if f.Event == EventSubscribe {
			handler.OnClientSubscribe(c.id, symbols)
		} else {
			handler.OnClientUnsubscribe(c.id, symbols)
		}

	case EventJoin, EventLeave:
		var room string
		if err := json.Unmarshal(f.Data, &room); err != nil || room == "" {
			c.hub.logger.Debug("ignoring room frame without user id", "conn", c.id, "event", f.Event)
			return
		}
		if f.Event == EventJoin {
			c.hub.Join(c.id, room)
		} else {
			c.hub.Leave(c.id, room)
		}

	default:
		c.hub.logger.Debug("ignoring unknown client event", "conn", c.id, "event", f.Event)
	}
}
