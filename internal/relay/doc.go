// Package relay implements the Feed Relay component.
//
// The Feed Relay:
//   - Owns one upstream ticker connection and one downstream hub
//   - Keeps a reference-counted registry of symbol interest per client connection
//   - Re-issues the full upstream subscription whenever the symbol set changes
//   - Broadcasts price updates for symbols with at least one subscriber
//   - Pushes order and balance notifications to a single user's room
//   - Reconnects upstream forever after a fixed delay
package relay
