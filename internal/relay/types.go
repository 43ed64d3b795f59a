package relay

import (
	"errors"
	"strings"
	"time"

	"github.com/rickgao/ticker-relay/internal/connection"
)

// Errors
var (
	ErrNilHub             = errors.New("hub is nil")
	ErrAlreadyInitialized = errors.New("relay already initialized with another hub")
	ErrStopped            = errors.New("relay stopped")
)

// Downstream event names.
const (
	EventPriceUpdate   = "price_update"
	EventOrderUpdate   = "order_update"
	EventBalanceUpdate = "balance_update"
)

// PriceUpdate is the normalized event derived from one upstream ticker frame.
type PriceUpdate struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"` // 24h percent change
	Volume float64 `json:"volume"`
}

// Hub is the downstream transport the relay fans out to.
type Hub interface {
	// SetHandler registers the receiver of client subscribe/unsubscribe/disconnect events.
	SetHandler(h ClientHandler)

	// Broadcast sends an event to every connected client.
	Broadcast(event string, payload any)

	// EmitToRoom sends an event to every client in room. Unknown rooms are a no-op.
	EmitToRoom(room, event string, payload any)
}

// ClientHandler receives downstream client events.
type ClientHandler interface {
	OnClientSubscribe(connID string, symbols []string)
	OnClientUnsubscribe(connID string, symbols []string)
	OnClientDisconnect(connID string)
}

// State is the upstream connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Config holds Feed Relay configuration.
type Config struct {
	URL               string
	StreamSuffix      string
	ReconnectDelay    time.Duration
	ReplayOnReconnect bool
	PingTimeout       time.Duration
	WriteTimeout      time.Duration
	BufferSize        int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	client := connection.DefaultClientConfig()
	return Config{
		URL:               "wss://stream.binance.com:9443/stream",
		StreamSuffix:      "@ticker",
		ReconnectDelay:    5 * time.Second,
		ReplayOnReconnect: true,
		PingTimeout:       client.PingTimeout,
		WriteTimeout:      client.WriteTimeout,
		BufferSize:        client.BufferSize,
	}
}

func (c Config) clientConfig() connection.ClientConfig {
	return connection.ClientConfig{
		URL:          c.URL,
		PingTimeout:  c.PingTimeout,
		WriteTimeout: c.WriteTimeout,
		BufferSize:   c.BufferSize,
	}
}

// Stats provides statistics about the relay.
type Stats struct {
	State           string `json:"state"`
	Symbols         int    `json:"symbols"`
	Subscriptions   int    `json:"subscriptions"` // (connection, symbol) pairs
	FramesReceived  int64  `json:"frames_received"`
	FramesDiscarded int64  `json:"frames_discarded"` // malformed or non-ticker frames
	UpdatesFiltered int64  `json:"updates_filtered"` // ticker frames for symbols nobody wants
	PricesForwarded int64  `json:"prices_forwarded"`
	SubscribeFrames int64  `json:"subscribe_frames"`
	Reconnects      int64  `json:"reconnects"`
}

// NormalizeSymbol returns the canonical upper-case form of a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
