package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/ticker-relay/internal/config"
	"github.com/rickgao/ticker-relay/internal/database"
)

// PostgresSource receives notifications via LISTEN/NOTIFY.
// Publishers run: SELECT pg_notify('relay_events', '{"kind":"order",...}')
type PostgresSource struct {
	base
	cfg config.PostgresConfig
}

// NewPostgresSource creates a LISTEN/NOTIFY source.
func NewPostgresSource(cfg config.PostgresConfig, delay time.Duration, sink Sink, logger *slog.Logger) *PostgresSource {
	s := &PostgresSource{cfg: cfg}
	s.init("postgres", delay, sink, logger)
	return s
}

// Run listens until ctx is done, reconnecting after failures.
func (s *PostgresSource) Run(ctx context.Context) error {
	return s.loop(ctx, s.consume)
}

func (s *PostgresSource) consume(ctx context.Context) error {
	pool, err := database.Connect(ctx, s.cfg.DB)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	s.logger.Info("listening for notifications",
		"host", s.cfg.DB.Host,
		"channel", s.cfg.Channel,
	)
	return database.Listen(ctx, pool, s.cfg.Channel, func(n database.Notification) {
		s.deliver([]byte(n.Payload), "")
	})
}
