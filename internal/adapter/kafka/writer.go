package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hazard-alert-feed/internal/config"
	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// messageWriter is the subset of *kafkago.Writer the Writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces normalized alerts to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes alerts in a single WriteMessages call.
// Messages are keyed by the alert's unique id so every revision of an alert
// lands on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeToMessage(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d alerts: %w", len(msgs), err)
	}
	w.logger.Debug("alerts published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Alert into a Kafka message.
func serializeToMessage(alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert %s: %w", alert.UniqueID, err)
	}
	return kafkago.Message{
		Key:   []byte(alert.UniqueID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(alert.Source)},
			{Key: "alert_type", Value: []byte(alert.Type)},
			{Key: "level", Value: []byte(alert.Level)},
			{Key: "published_at", Value: []byte(alert.PublishedDate.Format(time.RFC3339))},
		},
	}, nil
}
