package service

import (
	"context"
	"fmt"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

type RequestRideCommand struct {
	RideID  string
	UserID  string
	Tickets int
	Points  []string
}

// RequestRideUseCase reserves seats on a ride for the caller
type RequestRideUseCase struct {
	store          domain.Store
	eventPublisher EventPublisher
	logger         logger.Logger
	now            Clock
}

func NewRequestRideUseCase(store domain.Store, eventPublisher EventPublisher, logger logger.Logger, now Clock) *RequestRideUseCase {
	return &RequestRideUseCase{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         logger,
		now:            now,
	}
}

// Execute checks the request against a plain read first, then decides
// again inside a transaction where availableSeats cannot move under it.
func (uc *RequestRideUseCase) Execute(ctx context.Context, cmd RequestRideCommand) (*domain.Ride, error) {
	log := uc.logger.WithFields(logger.LogFields{
		"ride_id": cmd.RideID,
		"user_id": cmd.UserID,
		"tickets": cmd.Tickets,
	})

	if err := domain.Check(domain.ValidateSeatRequest, domain.SeatRequest{Tickets: cmd.Tickets, Points: cmd.Points}); err != nil {
		return nil, err
	}

	snapshot, err := uc.store.Rides().FindByID(ctx, cmd.RideID)
	if err != nil {
		return nil, notFoundAs(err, "ride not found")
	}
	if err := snapshot.CheckRequest(cmd.UserID, cmd.Tickets); err != nil {
		log.Info("seat_request_rejected", err.Error())
		return nil, err
	}

	passenger, err := uc.store.Users().FindByID(ctx, cmd.UserID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}

	var committed *domain.Ride
	err = uc.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		ride, err := tx.GetRide(ctx, cmd.RideID)
		if err != nil {
			return notFoundAs(err, "ride not found")
		}
		if err := ride.Reserve(passenger, cmd.Points, uc.now()); err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, ride); err != nil {
			return err
		}
		committed = ride
		return nil
	})
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindConflict, domain.KindNotFound:
			log.Info("seat_request_conflict", err.Error())
			return nil, err
		}
		return nil, fmt.Errorf("failed to reserve seats: %w", err)
	}
	log.WithFields(logger.LogFields{"available_seats": committed.AvailableSeats}).Info("seats_reserved", "Seats reserved")

	// Outside the transaction: a failure here leaves requests stale.
	if err := uc.store.Users().AddRequest(ctx, cmd.UserID, cmd.RideID); err != nil {
		log.Error("user_requests_update_failed", err)
	}

	publishEvent(ctx, uc.eventPublisher, log, domain.RideRequestedEvent{
		RideID:         committed.ID,
		DriverID:       committed.DriverID,
		PassengerID:    passenger.ID,
		PassengerName:  passenger.FullName(),
		Tickets:        cmd.Tickets,
		AvailableSeats: committed.AvailableSeats,
		RequestedAt:    committed.UpdatedAt,
	})
	return committed, nil
}
