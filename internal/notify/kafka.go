package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rickgao/ticker-relay/internal/config"
)

// messageReader is the subset of *kafka.Reader the source uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource receives notifications from a topic as part of a consumer group.
// Producers should key messages by user id so one user's updates stay ordered;
// the key doubles as the user id when the envelope omits it.
type KafkaSource struct {
	base
	cfg       config.KafkaConfig
	newReader func() messageReader
}

// NewKafkaSource creates a consumer-group source.
func NewKafkaSource(cfg config.KafkaConfig, delay time.Duration, sink Sink, logger *slog.Logger) *KafkaSource {
	s := &KafkaSource{cfg: cfg}
	s.newReader = func() messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		})
	}
	s.init("kafka", delay, sink, logger)
	return s
}

// Run consumes until ctx is done, recreating the reader after failures.
func (s *KafkaSource) Run(ctx context.Context) error {
	return s.loop(ctx, s.consume)
}

func (s *KafkaSource) consume(ctx context.Context) error {
	r := s.newReader()
	defer r.Close()

	s.logger.Info("consuming notifications",
		"topic", s.cfg.Topic,
		"group", s.cfg.GroupID,
	)

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		s.deliver(m.Value, string(m.Key))
	}
}
