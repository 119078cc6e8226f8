package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"smartqueue/internal/logger"
	"smartqueue/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader MessageReader
	topic  string
	logger *logger.Logger
	retry  time.Duration
}

// NewConsumer creates a Kafka consumer for the given topic and group. Each
// instance that feeds local display streams needs its own group id so it
// sees every message; it starts from the newest offset.
func NewConsumer(brokers []string, topic, groupID string, logger *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
	})
	return NewConsumerWithReader(reader, topic, logger)
}

func NewConsumerWithReader(reader MessageReader, topic string, logger *logger.Logger) *Consumer {
	return &Consumer{reader: reader, topic: topic, logger: logger, retry: time.Second}
}

// Run hands every decoded queue event to handle until ctx is cancelled.
// Malformed messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(ctx context.Context, event models.QueueEvent) error) error {
	c.logger.LogKafka("CONSUME", c.topic, "Kafka consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message from %s: %v", c.topic, err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retry):
			}
			continue
		}

		var event models.QueueEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
			continue
		}
		if err := handle(ctx, event); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Failed to handle %s for event %s: %v", event.Type, event.EventID, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
