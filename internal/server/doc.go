// Package server exposes the relay over HTTP with gin.
//
// Routes:
//
//	GET  <ws_path>                         downstream socket upgrade
//	GET  /health                           upstream state and hub counters
//	GET  /debug/subscriptions              symbol -> connection ids
//	GET  /debug/stats                      relay, hub and notify counters
//	POST /internal/users/:userID/orders    push order_update to a user
//	POST /internal/users/:userID/balances  push balance_update to a user
//
// The /internal group is meant for the exchange backend. When
// server.internal_token is set it requires "Authorization: Bearer <token>".
package server
