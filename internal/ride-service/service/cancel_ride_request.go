package service

import (
	"context"
	"fmt"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

type CancelRideRequestCommand struct {
	RideID string
	UserID string
}

// CancelRideRequestUseCase drops all of the caller's tickets on one ride
type CancelRideRequestUseCase struct {
	store          domain.Store
	eventPublisher EventPublisher
	logger         logger.Logger
	now            Clock
}

func NewCancelRideRequestUseCase(store domain.Store, eventPublisher EventPublisher, logger logger.Logger, now Clock) *CancelRideRequestUseCase {
	return &CancelRideRequestUseCase{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         logger,
		now:            now,
	}
}

// Execute updates the ride and the caller's requests list in one
// transaction.
func (uc *CancelRideRequestUseCase) Execute(ctx context.Context, cmd CancelRideRequestCommand) (*domain.Ride, error) {
	log := uc.logger.WithFields(logger.LogFields{
		"ride_id": cmd.RideID,
		"user_id": cmd.UserID,
	})

	var (
		committed *domain.Ride
		released  int
	)
	err := uc.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		ride, err := tx.GetRide(ctx, cmd.RideID)
		if err != nil {
			return notFoundAs(err, "ride not found")
		}
		user, err := tx.GetUser(ctx, cmd.UserID)
		if err != nil {
			return notFoundAs(err, "user not found")
		}

		now := uc.now()
		n, err := ride.Release(cmd.UserID, now)
		if err != nil {
			return err
		}
		user.Requests = domain.RemoveID(user.Requests, cmd.RideID)
		user.UpdatedAt = now

		if err := tx.UpdateRide(ctx, ride); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		committed, released = ride, n
		return nil
	})
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindConflict, domain.KindNotFound:
			log.Info("cancel_request_rejected", err.Error())
			return nil, err
		}
		return nil, fmt.Errorf("failed to cancel request: %w", err)
	}
	log.WithFields(logger.LogFields{
		"released":        released,
		"available_seats": committed.AvailableSeats,
	}).Info("ride_request_cancelled", "Ride request cancelled")

	publishEvent(ctx, uc.eventPublisher, log, domain.RideRequestCancelledEvent{
		RideID:         committed.ID,
		DriverID:       committed.DriverID,
		PassengerID:    cmd.UserID,
		Released:       released,
		AvailableSeats: committed.AvailableSeats,
		CancelledAt:    committed.UpdatedAt,
	})
	return committed, nil
}
