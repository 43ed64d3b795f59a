package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rickgao/ticker-relay/internal/config"
)

// Source consumes notifications until its context is done.
type Source interface {
	Name() string
	Run(ctx context.Context) error
	Stats() Stats
}

// Stats provides statistics about a source.
type Stats struct {
	Source    string `json:"source"`
	Delivered int64  `json:"delivered"`
	Rejected  int64  `json:"rejected"` // undecodable or unroutable messages
	Restarts  int64  `json:"restarts"`
}

// New builds the source selected by cfg.Source. It returns nil when
// notifications are disabled.
func New(cfg config.NotifyConfig, sink Sink, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		return nil, errors.New("notify: sink is nil")
	}

	switch cfg.Source {
	case "":
		return nil, nil
	case "postgres":
		return NewPostgresSource(cfg.Postgres, cfg.ReconnectDelay, sink, logger), nil
	case "redis":
		return NewRedisSource(cfg.Redis, cfg.ReconnectDelay, sink, logger), nil
	case "kafka":
		return NewKafkaSource(cfg.Kafka, cfg.ReconnectDelay, sink, logger), nil
	default:
		return nil, fmt.Errorf("notify: unknown source %q", cfg.Source)
	}
}

// base holds what every source shares: delivery and the retry loop.
type base struct {
	name   string
	sink   Sink
	logger *slog.Logger
	delay  time.Duration

	delivered atomic.Int64
	rejected  atomic.Int64
	restarts  atomic.Int64
}

func (b *base) init(name string, delay time.Duration, sink Sink, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = config.DefaultNotifyDelay
	}
	b.name = name
	b.sink = sink
	b.logger = logger.With("component", "notify", "source", name)
	b.delay = delay
}

func (b *base) Name() string { return b.name }

func (b *base) Stats() Stats {
	return Stats{
		Source:    b.name,
		Delivered: b.delivered.Load(),
		Rejected:  b.rejected.Load(),
		Restarts:  b.restarts.Load(),
	}
}

// deliver decodes one message and pushes it. fallbackUser fills a missing user_id.
func (b *base) deliver(data []byte, fallbackUser string) {
	n, err := decodeWithUser(data, fallbackUser)
	if err != nil {
		b.rejected.Add(1)
		b.logger.Warn("dropping notification", "error", err)
		return
	}
	if err := Dispatch(b.sink, n); err != nil {
		b.rejected.Add(1)
		b.logger.Warn("dropping notification", "error", err)
		return
	}
	b.delivered.Add(1)
	b.logger.Debug("notification delivered", "kind", n.Kind, "user", n.UserID)
}

// loop runs consume until ctx is done, waiting the fixed delay after each failure.
func (b *base) loop(ctx context.Context, consume func(context.Context) error) error {
	b.logger.Info("notification source started")
	for {
		err := consume(ctx)
		if ctx.Err() != nil {
			b.logger.Info("notification source stopped")
			return nil
		}

		b.restarts.Add(1)
		b.logger.Warn("notification source failed, retrying",
			"delay", b.delay,
			"error", err,
		)

		t := time.NewTimer(b.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			b.logger.Info("notification source stopped")
			return nil
		case <-t.C:
		}
	}
}
