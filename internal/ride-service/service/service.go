package service

import (
	"context"
	"errors"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

// EventPublisher is the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event domain.DomainEvent) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.DomainEvent) error { return nil }

// Clock returns the current time; tests pin it.
type Clock func() time.Time

// publishEvent is best-effort: the state change already committed, so a
// broker failure is logged and swallowed.
func publishEvent(ctx context.Context, p EventPublisher, log logger.Logger, event domain.DomainEvent) {
	if err := p.Publish(ctx, event); err != nil {
		log.WithFields(logger.LogFields{
			"ride_id":    event.AggregateID(),
			"event_type": event.EventType(),
		}).Error("publish_event_failed", err)
	}
}

// notFoundAs turns a store miss into a client-facing NotFound.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.NotFound(msg)
	}
	return err
}
