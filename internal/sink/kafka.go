package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"f1telemetry/internal/config"
	"f1telemetry/internal/render"
)

// Chart is one rendered figure published to downstream consumers.
type Chart struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Year      int           `json:"year"`
	Round     string        `json:"round"`
	Session   string        `json:"session"`
	Drivers   []string      `json:"drivers"`
	Channel   string        `json:"channel,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Figure    render.Figure `json:"figure"`
}

type Publisher interface {
	Publish(ctx context.Context, c Chart) error
	Close() error
}

// Discard drops every chart. Used when no sink is configured.
type Discard struct{}

func (Discard) Publish(context.Context, Chart) error { return nil }
func (Discard) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes charts as JSON messages keyed by chart id.
type Kafka struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// Open returns a Kafka publisher, or Discard when the sink is disabled.
func Open(cfg config.KafkaConfig, logger *slog.Logger) Publisher {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("kafka chart sink disabled")
		}
		return Discard{}
	}
	if logger != nil {
		logger.Info("kafka chart sink enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafka(w, cfg.Topic, logger)
}

func newKafka(w messageWriter, topic string, logger *slog.Logger) *Kafka {
	return &Kafka{writer: w, topic: topic, logger: logger}
}

func (k *Kafka) Publish(ctx context.Context, c Chart) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode chart %s: %w", c.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(c.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(c.Kind)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		if k.logger != nil {
			k.logger.Warn("kafka publish failed", "topic", k.topic, "chart_id", c.ID, "err", err)
		}
		return fmt.Errorf("publish chart %s: %w", c.ID, err)
	}
	if k.logger != nil {
		k.logger.Debug("chart published", "topic", k.topic, "chart_id", c.ID, "kind", c.Kind)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
