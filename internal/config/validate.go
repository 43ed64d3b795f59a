package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with /, got %q", c.Server.WSPath)
	}

	if err := c.Upstream.validate(); err != nil {
		return err
	}

	if c.Hub.MaxMessageSize < 1 {
		return errors.New("hub.max_message_size must be >= 1")
	}
	if c.Hub.QueueSize < 1 {
		return errors.New("hub.queue_size must be >= 1")
	}
	if c.Hub.PongWait <= 0 {
		return errors.New("hub.pong_wait must be > 0")
	}

	if err := c.Notify.validate(); err != nil {
		return err
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (u *UpstreamConfig) validate() error {
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return fmt.Errorf("upstream.url is invalid: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("upstream.url must use ws or wss scheme, got %q", parsed.Scheme)
	}
	if u.StreamSuffix == "" {
		return errors.New("upstream.stream_suffix is required")
	}
	if u.ReconnectDelay <= 0 {
		return errors.New("upstream.reconnect_delay must be > 0")
	}
	if u.BufferSize < 1 {
		return errors.New("upstream.buffer_size must be >= 1")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	switch n.Source {
	case "":
		return nil
	case "postgres":
		if n.Postgres.Channel == "" {
			return errors.New("notify.postgres.channel is required")
		}
		return n.Postgres.DB.validate("notify.postgres.db")
	case "redis":
		if n.Redis.Addr == "" {
			return errors.New("notify.redis.addr is required")
		}
		if n.Redis.Channel == "" {
			return errors.New("notify.redis.channel is required")
		}
		return nil
	case "kafka":
		if len(n.Kafka.Brokers) == 0 {
			return errors.New("notify.kafka.brokers is required")
		}
		if n.Kafka.Topic == "" {
			return errors.New("notify.kafka.topic is required")
		}
		return nil
	default:
		return fmt.Errorf("notify.source must be one of postgres, redis, kafka, got %q", n.Source)
	}
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
