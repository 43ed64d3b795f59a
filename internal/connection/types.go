package connection

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Control frame methods accepted by the upstream feed.
const (
	MethodSubscribe   = "SUBSCRIBE"
	MethodUnsubscribe = "UNSUBSCRIBE"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ControlFrame is a subscription command sent upstream.
type ControlFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// StreamEnvelope is the combined-stream wrapper around every data frame.
type StreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// TickerData is the subset of the 24h ticker payload the relay forwards.
type TickerData struct {
	LastPrice     string `json:"c"`
	PercentChange string `json:"P"`
	Volume        string `json:"v"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://stream.binance.com:9443/stream)
	PingTimeout  time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// StreamName returns the lower-case stream name for a symbol, e.g. "btcusdt@ticker".
func StreamName(symbol, suffix string) string {
	return strings.ToLower(symbol) + suffix
}

// SymbolFromStream extracts the canonical upper-case symbol from a stream name.
// ok is false when the stream does not carry the suffix or has no symbol part.
func SymbolFromStream(stream, suffix string) (string, bool) {
	name, found := strings.CutSuffix(stream, suffix)
	if !found || name == "" {
		return "", false
	}
	return strings.ToUpper(name), true
}

// NewSubscribeFrame builds a SUBSCRIBE frame covering every symbol.
func NewSubscribeFrame(id int64, symbols []string, suffix string) ControlFrame {
	params := make([]string, len(symbols))
	for i, s := range symbols {
		params[i] = StreamName(s, suffix)
	}
	return ControlFrame{
		Method: MethodSubscribe,
		Params: params,
		ID:     id,
	}
}
