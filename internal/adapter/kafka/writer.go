package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/adrian-cg/earthquakes/internal/config"
	"github.com/adrian-cg/earthquakes/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes completed display cycles to a Kafka topic.
// It implements coordinator.DisplaySink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured display topic.
// Messages are keyed by display kind so each kind stays ordered.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaDisplayTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes d and writes it to the display topic.
func (w *Writer) Publish(ctx context.Context, d domain.Display) error {
	msg, err := serializeToMessage(d)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s display: %w", d.Kind, err)
	}
	w.logger.Debug("display published", "kind", d.Kind, "quakes", len(d.Quakes), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Display into a Kafka message.
func serializeToMessage(d domain.Display) (kafkago.Message, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize display: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(d.Kind),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "display_kind", Value: []byte(d.Kind)},
			{Key: "displayed_at", Value: []byte(d.DisplayedAt.Format(time.RFC3339))},
		},
	}, nil
}
