package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ecogrid-engine/internal/config"
	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

// EventTypeFacilityBuilt is the event_type header of build events.
const EventTypeFacilityBuilt = "facility_built"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes facility build events to a Kafka topic.
// It implements game.EventPublisher.
type Writer struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured build topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaBuildTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// PublishFacilityBuilt writes one build event keyed by facility id, so every
// event for a facility lands on the same partition.
func (w *Writer) PublishFacilityBuilt(ctx context.Context, event domain.FacilityBuiltEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish facility built %s: %w", event.ID, err)
	}

	w.logger.Debug("build event published", "facility_id", event.ID, "username", event.Username)
	if w.metrics != nil {
		w.metrics.BuildEventsProduced.Inc()
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a FacilityBuiltEvent into a Kafka message.
func serializeToMessage(event domain.FacilityBuiltEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize build event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventTypeFacilityBuilt)},
			{Key: "built_at", Value: []byte(event.BuiltAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
