package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"smartqueue/internal/logger"
	"smartqueue/internal/models"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topic  string
	Logger *logger.Logger
}

// NewProducer keys messages by event id, so one event's notices stay on one
// partition and keep their order.
func NewProducer(brokers []string, topic string, logger *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topic: topic, Logger: logger}
}

// Publish streams a queue transition to Kafka
func (p *Producer) Publish(ctx context.Context, event models.QueueEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EventID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.Topic, err)
	}
	p.Logger.LogKafka("PUBLISH", p.Topic, fmt.Sprintf("%s for event %s", event.Type, event.EventID))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
