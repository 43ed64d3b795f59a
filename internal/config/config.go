package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Hub      HubConfig      `yaml:"hub"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this relay.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	WSPath          string        `yaml:"ws_path"`
	InternalToken   string        `yaml:"internal_token"` // Bearer token for /internal routes (empty = open)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig holds the exchange ticker stream settings.
type UpstreamConfig struct {
	URL               string        `yaml:"url"`
	StreamSuffix      string        `yaml:"stream_suffix"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
	ReplayOnReconnect *bool         `yaml:"replay_on_reconnect"` // nil = default (true)
}

// HubConfig holds downstream socket settings.
type HubConfig struct {
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	QueueSize      int           `yaml:"queue_size"` // Initial per-connection outbound capacity
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// NotifyConfig selects the order/balance notification source.
type NotifyConfig struct {
	Source         string         `yaml:"source"` // "", "postgres", "redis", "kafka"
	ReconnectDelay time.Duration  `yaml:"reconnect_delay"`
	Postgres       PostgresConfig `yaml:"postgres"`
	Redis          RedisConfig    `yaml:"redis"`
	Kafka          KafkaConfig    `yaml:"kafka"`
}

// PostgresConfig holds the LISTEN/NOTIFY source settings.
type PostgresConfig struct {
	DB      DBConfig `yaml:"db"`
	Channel string   `yaml:"channel"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the pub/sub source settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// KafkaConfig holds the topic consumer settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ReplayEnabled reports whether desired subscriptions are re-sent after a reconnect.
func (u UpstreamConfig) ReplayEnabled() bool {
	if u.ReplayOnReconnect == nil {
		return DefaultReplayOnReconnect
	}
	return *u.ReplayOnReconnect
}
