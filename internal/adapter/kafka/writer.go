package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/station-climate-etl/internal/config"
	"github.com/couchcryptid/station-climate-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces station series to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes one station series and writes it keyed by station code,
// so every version of a station lands on the same partition.
func (w *Writer) Publish(ctx context.Context, runID string, s domain.StationSeries) error {
	msg, err := serializeToMessage(runID, s)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write station %d: %w", s.StationCode, err)
	}
	w.logger.Debug("station series published", "station", s.StationCode, "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StationSeries into a Kafka message.
func serializeToMessage(runID string, s domain.StationSeries) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station series: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(s.StationCode)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "provider", Value: []byte(s.Provider)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "processed_at", Value: []byte(s.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
