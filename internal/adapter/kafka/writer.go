package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/water-violation-explainer/internal/config"
	"github.com/couchcryptid/water-violation-explainer/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes explanation events to a Kafka topic.
// It implements pipeline.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured event topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Notify publishes one message per event in a single WriteMessages call.
// Messages are keyed by the violation key so all explanations of one
// violation land on the same partition.
func (w *Writer) Notify(ctx context.Context, events []domain.ExplanationEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write explanation events: %w", err)
	}
	w.logger.Debug("explanation events published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an ExplanationEvent into a Kafka message.
func serializeToMessage(event domain.ExplanationEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize explanation event: %w", err)
	}
	key := domain.Key{
		SubmissionYearQuarter: event.SubmissionYearQuarter,
		ViolationID:           event.ViolationID,
		PWSID:                 event.PWSID,
	}
	return kafkago.Message{
		Key:   []byte(key.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "health_risk_level", Value: []byte(event.RiskLevel)},
			{Key: "source", Value: []byte(event.Source)},
			{Key: "created_at", Value: []byte(event.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
