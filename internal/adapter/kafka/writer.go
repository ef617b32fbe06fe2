// Package kafka publishes facility candidates to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/demand-siting/internal/config"
	"github.com/couchcryptid/demand-siting/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces facility candidate messages to the sink topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic. Messages
// are hashed by key so a facility id always lands on the same partition.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// FacilityMessage is the JSON value of a published facility candidate.
type FacilityMessage struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	domain.FacilityCandidate
}

// Publish writes every facility of a run in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, runID string, generatedAt time.Time, facilities []domain.FacilityCandidate) error {
	if len(facilities) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(facilities))
	for i := range facilities {
		msg, err := serializeToMessage(runID, generatedAt, facilities[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish facilities: %w", err)
	}
	w.logger.Info("facilities published", "run_id", runID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(runID string, generatedAt time.Time, f domain.FacilityCandidate) (kafkago.Message, error) {
	data, err := json.Marshal(FacilityMessage{RunID: runID, GeneratedAt: generatedAt.UTC(), FacilityCandidate: f})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize facility %s: %w", f.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(f.ID),
		Value: data,
		Time:  generatedAt,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "rank", Value: []byte(strconv.Itoa(f.Rank))},
		},
	}, nil
}
