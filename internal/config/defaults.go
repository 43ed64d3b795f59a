package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID        = "relay"
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8080
	DefaultWSPath            = "/ws"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultUpstreamURL       = "wss://stream.binance.com:9443/stream"
	DefaultStreamSuffix      = "@ticker"
	DefaultReconnectDelay    = 5 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultUpstreamBuffer    = 1000
	DefaultReplayOnReconnect = true
	DefaultWriteWait         = 10 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultMaxMessageSize    = 64 * 1024
	DefaultQueueSize         = 64
	DefaultNotifyDelay       = 5 * time.Second
	DefaultPGChannel         = "relay_events"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 2
	DefaultMinConns          = 1
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisChannel      = "relay:events"
	DefaultKafkaTopic        = "relay-events"
	DefaultKafkaGroupID      = "ticker-relay"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *RelayConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Upstream defaults
	if c.Upstream.URL == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}
	if c.Upstream.StreamSuffix == "" {
		c.Upstream.StreamSuffix = DefaultStreamSuffix
	}
	if c.Upstream.ReconnectDelay == 0 {
		c.Upstream.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Upstream.PingTimeout == 0 {
		c.Upstream.PingTimeout = DefaultPingTimeout
	}
	if c.Upstream.WriteTimeout == 0 {
		c.Upstream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Upstream.BufferSize == 0 {
		c.Upstream.BufferSize = DefaultUpstreamBuffer
	}

	// Hub defaults
	if c.Hub.WriteWait == 0 {
		c.Hub.WriteWait = DefaultWriteWait
	}
	if c.Hub.PongWait == 0 {
		c.Hub.PongWait = DefaultPongWait
	}
	if c.Hub.MaxMessageSize == 0 {
		c.Hub.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Hub.QueueSize == 0 {
		c.Hub.QueueSize = DefaultQueueSize
	}

	// Notify defaults
	if c.Notify.ReconnectDelay == 0 {
		c.Notify.ReconnectDelay = DefaultNotifyDelay
	}
	if c.Notify.Postgres.Channel == "" {
		c.Notify.Postgres.Channel = DefaultPGChannel
	}
	applyDBDefaults(&c.Notify.Postgres.DB)
	if c.Notify.Redis.Addr == "" {
		c.Notify.Redis.Addr = DefaultRedisAddr
	}
	if c.Notify.Redis.Channel == "" {
		c.Notify.Redis.Channel = DefaultRedisChannel
	}
	if c.Notify.Kafka.Topic == "" {
		c.Notify.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Notify.Kafka.GroupID == "" {
		c.Notify.Kafka.GroupID = DefaultKafkaGroupID
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
