package service

import (
	"context"
	"fmt"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

// CancelRideCommand represents the input for cancelling a ride
type CancelRideCommand struct {
	RideID   string
	DriverID string
}

// CancelRideUseCase handles the business workflow for cancelling a ride
type CancelRideUseCase struct {
	store          domain.Store
	eventPublisher EventPublisher
	logger         logger.Logger
	now            Clock
}

// NewCancelRideUseCase creates a new use case instance
func NewCancelRideUseCase(store domain.Store, eventPublisher EventPublisher, logger logger.Logger, now Clock) *CancelRideUseCase {
	return &CancelRideUseCase{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         logger,
		now:            now,
	}
}

// Execute cancels the ride, then removes it from the driver's rides and
// from every passenger's requests. The list updates are best-effort: one
// failing user is logged and the rest still run.
func (uc *CancelRideUseCase) Execute(ctx context.Context, cmd CancelRideCommand) (*domain.Ride, error) {
	log := uc.logger.WithFields(logger.LogFields{
		"ride_id": cmd.RideID,
		"user_id": cmd.DriverID,
	})

	// 1. Status transition
	var cancelled *domain.Ride
	err := uc.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		ride, err := tx.GetRide(ctx, cmd.RideID)
		if err != nil {
			return notFoundAs(err, "ride not found")
		}
		if ride.DriverID != cmd.DriverID {
			return domain.Forbidden("only the driver can cancel this ride")
		}
		if err := ride.Cancel(uc.now()); err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, ride); err != nil {
			return err
		}
		cancelled = ride
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			log.Info("cancel_ride_rejected", err.Error())
			return nil, err
		}
		return nil, fmt.Errorf("failed to cancel ride: %w", err)
	}
	log.Info("ride_cancelled", "Ride cancelled")

	// 2. Fan-out to denormalized lists
	if err := uc.store.Users().RemoveRide(ctx, cancelled.DriverID, cancelled.ID); err != nil {
		log.Error("cancel_fanout_failed", fmt.Errorf("driver %s: %w", cancelled.DriverID, err))
	}
	passengers := cancelled.PassengerIDs()
	for _, passengerID := range passengers {
		if err := uc.store.Users().RemoveRequest(ctx, passengerID, cancelled.ID); err != nil {
			log.WithFields(logger.LogFields{"passenger_id": passengerID}).
				Error("cancel_fanout_failed", fmt.Errorf("passenger %s: %w", passengerID, err))
		}
	}

	publishEvent(ctx, uc.eventPublisher, log, domain.RideCancelledEvent{
		RideID:       cancelled.ID,
		DriverID:     cancelled.DriverID,
		PassengerIDs: passengers,
		CancelledAt:  cancelled.UpdatedAt,
	})
	return cancelled, nil
}
