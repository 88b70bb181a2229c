package service

import (
	"context"
	"fmt"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

type FinalizeRideCommand struct {
	DriverID string
}

// FinalizeRideUseCase marks the driver's active ride as finished
type FinalizeRideUseCase struct {
	store          domain.Store
	eventPublisher EventPublisher
	logger         logger.Logger
	now            Clock
}

func NewFinalizeRideUseCase(store domain.Store, eventPublisher EventPublisher, logger logger.Logger, now Clock) *FinalizeRideUseCase {
	return &FinalizeRideUseCase{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         logger,
		now:            now,
	}
}

// Execute finishes the active ride departing first when the driver has
// more than one.
func (uc *FinalizeRideUseCase) Execute(ctx context.Context, cmd FinalizeRideCommand) (*domain.Ride, error) {
	log := uc.logger.WithFields(logger.LogFields{"user_id": cmd.DriverID})

	active, err := uc.store.Rides().FindByDriverAndStatus(ctx, cmd.DriverID, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rides: %w", err)
	}
	if len(active) == 0 {
		return nil, domain.NotFound("no active ride found")
	}
	if len(active) > 1 {
		log.WithFields(logger.LogFields{"active_rides": len(active)}).
			Warn("finalize_multiple_active", "Driver has several active rides, finishing the earliest")
	}
	target := active[0]
	log = log.WithFields(logger.LogFields{"ride_id": target.ID})

	var finished *domain.Ride
	err = uc.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		ride, err := tx.GetRide(ctx, target.ID)
		if err != nil {
			return notFoundAs(err, "no active ride found")
		}
		if err := ride.Finish(uc.now()); err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, ride); err != nil {
			return err
		}
		finished = ride
		return nil
	})
	if err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			log.Info("finalize_ride_rejected", err.Error())
			return nil, err
		}
		return nil, fmt.Errorf("failed to finalize ride: %w", err)
	}
	log.Info("ride_finished", "Ride finished")

	publishEvent(ctx, uc.eventPublisher, log, domain.RideFinishedEvent{
		RideID:       finished.ID,
		DriverID:     finished.DriverID,
		PassengerIDs: finished.PassengerIDs(),
		FinishedAt:   *finished.FinishedAt,
	})
	return finished, nil
}
