package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"marketregime/internal/domain/regime"
	"marketregime/pkg/logger"
)

// Consumer reads regime change events
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string // empty reads without a consumer group
	Topic    string
	MinBytes int
	MaxBytes int

	// FromBeginning starts at the oldest retained message when no offset is committed
	FromBeginning bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6 // 10MB
	}
	if cfg.Topic == "" {
		cfg.Topic = TopicRegimeChange
	}

	startOffset := kafka.LastOffset
	if cfg.FromBeginning {
		startOffset = kafka.FirstOffset
	}

	log := logger.Get().With("component", "kafka_consumer", "topic", cfg.Topic)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: startOffset,
	})

	log.Infow("Kafka consumer created",
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
	)

	return &Consumer{
		reader: reader,
		log:    log,
	}
}

// ChangeHandler processes one decoded event
type ChangeHandler func(ctx context.Context, event regime.ChangeEvent) error

// ConsumeChanges blocks until ctx is cancelled, decoding every message as a
// regime.ChangeEvent. Undecodable messages and handler failures are logged
// and skipped.
func (c *Consumer) ConsumeChanges(ctx context.Context, handler ChangeHandler) error {
	c.log.Info("Starting consumer")

	for {
		msg, err := c.readMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumer stopped")
				return ctx.Err()
			}
			c.log.Errorf("Failed to read message: %v", err)
			continue
		}

		var event regime.ChangeEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Warnw("Skipping undecodable message", "key", string(msg.Key), "offset", msg.Offset, "error", err)
			continue
		}

		if err := handler(ctx, event); err != nil {
			c.log.Errorf("Failed to handle message: %v", err)
		}
	}
}

// readMessage checks for shutdown before blocking on the reader
func (c *Consumer) readMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, err
	}
	return msg, nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
