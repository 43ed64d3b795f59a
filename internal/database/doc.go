// Package database manages the PostgreSQL pool used by the
// LISTEN/NOTIFY notification source.
//
// Notifications need a dedicated session, so Listen holds one pooled
// connection for as long as it runs.
package database
