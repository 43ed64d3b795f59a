// Package hub is the downstream WebSocket transport.
//
// Every accepted socket gets a uuid connection id. Clients send
// subscribe/unsubscribe frames, which are forwarded to the registered
// relay.ClientHandler, and join/leave frames, which manage per-user rooms.
// The hub knows nothing about symbols: price updates are broadcast to every
// socket and order/balance updates go to a single room.
//
// Wire format, both directions:
//
//	{"event":"<name>","data":<payload>}
package hub
