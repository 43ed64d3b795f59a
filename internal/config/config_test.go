package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: relay-1
server:
  port: 9000
upstream:
  url: wss://stream.example.com/stream
  reconnect_delay: 2s
notify:
  source: redis
  redis:
    addr: redis:6379
    channel: user-events
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "relay-1" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "relay-1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Upstream.ReconnectDelay != 2*time.Second {
		t.Errorf("Upstream.ReconnectDelay = %v, want 2s", cfg.Upstream.ReconnectDelay)
	}
	if cfg.Notify.Redis.Channel != "user-events" {
		t.Errorf("Notify.Redis.Channel = %q, want %q", cfg.Notify.Redis.Channel, "user-events")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RELAY_TOKEN", "secret123")

	yaml := `
server:
  internal_token: ${TEST_RELAY_TOKEN}
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.InternalToken != "secret123" {
		t.Errorf("Server.InternalToken = %q, want %q", cfg.Server.InternalToken, "secret123")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeTempFile(t, ".env", "TEST_RELAY_ENV_FILE=from-file\n")
	t.Setenv("TEST_RELAY_ENV_FILE", "")
	os.Unsetenv("TEST_RELAY_ENV_FILE")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if got := os.Getenv("TEST_RELAY_ENV_FILE"); got != "from-file" {
		t.Errorf("TEST_RELAY_ENV_FILE = %q, want %q", got, "from-file")
	}

	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "instance:\n  id: relay-1\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Upstream.URL != DefaultUpstreamURL {
		t.Errorf("Upstream.URL = %q, want default %q", cfg.Upstream.URL, DefaultUpstreamURL)
	}
	if cfg.Upstream.StreamSuffix != DefaultStreamSuffix {
		t.Errorf("Upstream.StreamSuffix = %q, want default %q", cfg.Upstream.StreamSuffix, DefaultStreamSuffix)
	}
	if cfg.Upstream.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("Upstream.ReconnectDelay = %v, want default %v", cfg.Upstream.ReconnectDelay, DefaultReconnectDelay)
	}
	if !cfg.Upstream.ReplayEnabled() {
		t.Error("ReplayEnabled() = false, want default true")
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.WSPath != DefaultWSPath {
		t.Errorf("Server.WSPath = %q, want default %q", cfg.Server.WSPath, DefaultWSPath)
	}
	if cfg.Notify.Postgres.DB.Port != DefaultDBPort {
		t.Errorf("Notify.Postgres.DB.Port = %d, want default %d", cfg.Notify.Postgres.DB.Port, DefaultDBPort)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestReplayEnabledExplicitFalse(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "upstream:\n  replay_on_reconnect: false\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Upstream.ReplayEnabled() {
		t.Error("ReplayEnabled() = true, want false")
	}
}

func TestValidate(t *testing.T) {
	valid := func() RelayConfig {
		cfg := RelayConfig{}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*RelayConfig)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *RelayConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *RelayConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "port out of range",
			mutate:  func(c *RelayConfig) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "ws path without slash",
			mutate:  func(c *RelayConfig) { c.Server.WSPath = "ws" },
			wantErr: `server.ws_path must start with /, got "ws"`,
		},
		{
			name:    "http upstream",
			mutate:  func(c *RelayConfig) { c.Upstream.URL = "https://stream.example.com" },
			wantErr: `upstream.url must use ws or wss scheme, got "https"`,
		},
		{
			name:    "negative reconnect delay",
			mutate:  func(c *RelayConfig) { c.Upstream.ReconnectDelay = -time.Second },
			wantErr: "upstream.reconnect_delay must be > 0",
		},
		{
			name:    "unknown notify source",
			mutate:  func(c *RelayConfig) { c.Notify.Source = "amqp" },
			wantErr: `notify.source must be one of postgres, redis, kafka, got "amqp"`,
		},
		{
			name:    "postgres source without host",
			mutate:  func(c *RelayConfig) { c.Notify.Source = "postgres" },
			wantErr: "notify.postgres.db.host is required",
		},
		{
			name: "postgres min_conns exceeds max_conns",
			mutate: func(c *RelayConfig) {
				c.Notify.Source = "postgres"
				c.Notify.Postgres.DB = DBConfig{Host: "localhost", Name: "app", User: "app", MaxConns: 1, MinConns: 3}
			},
			wantErr: "notify.postgres.db.min_conns (3) cannot exceed max_conns (1)",
		},
		{
			name:    "kafka source without brokers",
			mutate:  func(c *RelayConfig) { c.Notify.Source = "kafka" },
			wantErr: "notify.kafka.brokers is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *RelayConfig) { c.Log.Level = "loud" },
			wantErr: `log.level must be debug, info, warn or error, got "loud"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *RelayConfig) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "symbol", "BTCUSDT")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"symbol":"BTCUSDT"`) {
		t.Errorf("expected JSON output with symbol attribute, got %s", out)
	}

	if lvl, _ := ParseLevel("DEBUG"); lvl != slog.LevelDebug {
		t.Errorf("ParseLevel(DEBUG) = %v, want debug", lvl)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
