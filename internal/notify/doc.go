// Package notify consumes order and balance change notifications published
// by the exchange backend and hands them to the relay for delivery to the
// owning user's sockets.
//
// One source is active per process, selected by notify.source:
//   - postgres: LISTEN on a channel, payload is the JSON envelope
//   - redis: SUBSCRIBE to a pub/sub channel
//   - kafka: consumer group on a topic, the message key may carry the user id
//
// Envelope:
//
//	{"kind":"order"|"balance","user_id":"42","payload":{...}}
package notify
