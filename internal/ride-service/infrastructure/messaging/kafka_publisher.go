package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// KafkaEventPublisher writes domain events to one topic, keyed by ride id
// so every event of a ride lands on the same partition.
type KafkaEventPublisher struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaEventPublisher(brokers []string, topic string, log logger.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		logger: log,
	}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	body, err := json.Marshal(domain.NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.AggregateID()),
		Value: body,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to kafka: %w", err)
	}
	p.logger.WithFields(logger.LogFields{
		"event_type": event.EventType(),
		"topic":      p.writer.Topic,
		"ride_id":    event.AggregateID(),
	}).Debug("event_published", "Domain event published to Kafka")
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
