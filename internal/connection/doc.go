// Package connection implements the upstream ticker stream client.
//
// The client:
//   - Dials a Binance-style combined stream endpoint
//   - Sends SUBSCRIBE/UNSUBSCRIBE control frames
//   - Delivers raw, timestamped frames on a channel
//   - Answers server pings and detects stale connections
//
// Reconnection is owned by the caller (see internal/relay).
package connection
