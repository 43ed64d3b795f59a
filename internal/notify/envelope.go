package notify

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownKind = errors.New("unknown notification kind")
	ErrMissingUser = errors.New("notification has no user id")
)

// Notification kinds.
const (
	KindOrder   = "order"
	KindBalance = "balance"
)

// Notification is a decoded order or balance change for one user.
type Notification struct {
	Kind    string          `json:"kind"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// Sink receives decoded notifications. *relay.Relay satisfies it.
type Sink interface {
	PushOrderUpdate(userID string, payload any)
	PushBalanceUpdate(userID string, payload any)
}

// Decode parses and validates an envelope.
func Decode(data []byte) (Notification, error) {
	return decodeWithUser(data, "")
}

// decodeWithUser fills UserID from fallback when the envelope omits it.
func decodeWithUser(data []byte, fallback string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}

	switch n.Kind {
	case KindOrder, KindBalance:
	default:
		return Notification{}, fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}

	if n.UserID == "" {
		n.UserID = fallback
	}
	if n.UserID == "" {
		return Notification{}, ErrMissingUser
	}
	if len(n.Payload) == 0 {
		n.Payload = json.RawMessage("null")
	}
	return n, nil
}

// Dispatch routes n to the matching push operation.
func Dispatch(sink Sink, n Notification) error {
	switch n.Kind {
	case KindOrder:
		sink.PushOrderUpdate(n.UserID, n.Payload)
	case KindBalance:
		sink.PushBalanceUpdate(n.UserID, n.Payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	return nil
}
