package hub

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrClosed = errors.New("hub closed")

// Client-originated events.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventJoin        = "join"
	EventLeave       = "leave"
)

// UserQueryParam joins the named user's room at connect time.
const UserQueryParam = "user_id"

// Frame is the envelope for every message on a downstream socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Config holds downstream socket settings.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	QueueSize      int
	AllowedOrigins []string // empty allows any origin
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
		QueueSize:      64,
	}
}

func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Stats provides statistics about the hub.
type Stats struct {
	Connections     int   `json:"connections"`
	Rooms           int   `json:"rooms"`
	Accepted        int64 `json:"accepted"`
	Broadcasts      int64 `json:"broadcasts"`
	RoomEmits       int64 `json:"room_emits"`
	PendingFrames   int   `json:"pending_frames"`    // sum of all outbound queues
	MaxQueueGrowths int   `json:"max_queue_growths"` // worst single connection
}

// parseSymbols accepts either a list or a single symbol.
func parseSymbols(data json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []string{one}, nil
}
