package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
	"ride-share/pkg/rabbitmq"
)

// RabbitMQEventPublisher implements service.EventPublisher
type RabbitMQEventPublisher struct {
	rabbit *rabbitmq.Connection
	logger logger.Logger
}

// NewRabbitMQEventPublisher creates a new RabbitMQ event publisher
func NewRabbitMQEventPublisher(rabbit *rabbitmq.Connection, logger logger.Logger) *RabbitMQEventPublisher {
	return &RabbitMQEventPublisher{
		rabbit: rabbit,
		logger: logger,
	}
}

// Publish publishes a domain event to the ride_topic exchange, routed by
// event type.
func (p *RabbitMQEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	body, err := json.Marshal(domain.NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	routingKey := event.EventType()
	if err := p.rabbit.Publish(ctx, rabbitmq.RideExchange, routingKey, body); err != nil {
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}

	p.logger.WithFields(logger.LogFields{
		"event_type":  event.EventType(),
		"routing_key": routingKey,
		"ride_id":     event.AggregateID(),
	}).Debug("event_published", "Domain event published to RabbitMQ")

	return nil
}
