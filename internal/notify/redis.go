package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/ticker-relay/internal/config"
)

// RedisSource receives notifications from a pub/sub channel.
type RedisSource struct {
	base
	cfg    config.RedisConfig
	client *redis.Client
}

// NewRedisSource creates a pub/sub source. The client dials lazily.
func NewRedisSource(cfg config.RedisConfig, delay time.Duration, sink Sink, logger *slog.Logger) *RedisSource {
	s := &RedisSource{
		cfg: cfg,
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
	s.init("redis", delay, sink, logger)
	return s
}

// Run subscribes until ctx is done, resubscribing after failures.
func (s *RedisSource) Run(ctx context.Context) error {
	defer s.client.Close()
	return s.loop(ctx, s.consume)
}

func (s *RedisSource) consume(ctx context.Context) error {
	ps := s.client.Subscribe(ctx, s.cfg.Channel)
	defer ps.Close()

	// Wait for the subscription confirmation so failures surface here.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Channel, err)
	}
	s.logger.Info("subscribed to notifications",
		"addr", s.cfg.Addr,
		"channel", s.cfg.Channel,
	)

	// The channel reconnects internally and only closes with ps.
	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("subscription channel closed")
			}
			s.deliver([]byte(msg.Payload), "")
		}
	}
}
