package events

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"marketregime/internal/adapters/kafka"
	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
	"marketregime/pkg/logger"
)

// Compile-time check
var _ regime.Publisher = (*RegimePublisher)(nil)

// BatchWriter is the part of kafka.Producer the publisher needs
type BatchWriter interface {
	PublishBatch(ctx context.Context, topic string, messages []kafkago.Message) error
}

// Compile-time check
var _ BatchWriter = (*kafka.Producer)(nil)

// RegimePublisher publishes regime transitions to Kafka as JSON
type RegimePublisher struct {
	producer BatchWriter
	topic    string
	log      *logger.Logger
}

// NewRegimePublisher creates a publisher; an empty topic selects kafka.TopicRegimeChange
func NewRegimePublisher(producer BatchWriter, topic string, log *logger.Logger) *RegimePublisher {
	if topic == "" {
		topic = kafka.TopicRegimeChange
	}
	if log == nil {
		log = logger.Get()
	}
	return &RegimePublisher{
		producer: producer,
		topic:    topic,
		log:      log.With("component", "regime_publisher"),
	}
}

// PublishChanges sends all events in one batch keyed by instrument so that one
// instrument's transitions stay ordered within a partition.
func (p *RegimePublisher) PublishChanges(ctx context.Context, events []regime.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafkago.Message, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return errors.Wrap(err, "marshal regime change")
		}
		messages = append(messages, kafkago.Message{
			Key:   []byte(MessageKey(event.Symbol, event.Timeframe)),
			Value: data,
			Time:  event.Timestamp,
		})
	}

	if err := p.producer.PublishBatch(ctx, p.topic, messages); err != nil {
		p.log.Errorw("Failed to publish regime changes",
			"topic", p.topic,
			"events", len(events),
			"error", err,
		)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Regime changes published",
		"topic", p.topic,
		"events", len(events),
	)
	return nil
}

// MessageKey is the partition key of an instrument
func MessageKey(symbol, timeframe string) string {
	return symbol + ":" + timeframe
}
