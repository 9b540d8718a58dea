package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/config"
	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes station outcomes to a Kafka topic.
// It implements pipeline.OutcomeSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured outcome topic.
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

// Publish writes one outcome, keyed by the station's file key so all
// outcomes of a station land on the same partition.
func (w *Writer) Publish(ctx context.Context, outcome domain.StationOutcome) error {
	msg, err := serializeToMessage(outcome)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish outcome for %s: %w", outcome.Station.FileKey, err)
	}
	w.logger.Debug("outcome published", "station", outcome.Station.FileKey, "state", outcome.State)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StationOutcome into a Kafka message.
func serializeToMessage(outcome domain.StationOutcome) (kafkago.Message, error) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station outcome: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(outcome.Station.FileKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "state", Value: []byte(outcome.State)},
			{Key: "finished_at", Value: []byte(outcome.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}
