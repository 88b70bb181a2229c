package service

import (
	"context"
	"errors"
	"fmt"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

// CreateRideCommand represents the input for creating a ride. Numeric and
// time fields arrive unparsed so validation can name the offending field.
type CreateRideCommand struct {
	DriverID         string
	DeparturePoint   string
	DestinationPoint string
	Route            string
	DepartureTime    string
	Capacity         string
	PricePassenger   string
}

// CreateRideUseCase handles the business workflow for creating a ride
type CreateRideUseCase struct {
	store          domain.Store
	eventPublisher EventPublisher
	logger         logger.Logger
	now            Clock
}

// NewCreateRideUseCase creates a new use case instance
func NewCreateRideUseCase(store domain.Store, eventPublisher EventPublisher, logger logger.Logger, now Clock) *CreateRideUseCase {
	return &CreateRideUseCase{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         logger,
		now:            now,
	}
}

// Execute runs the use case
func (uc *CreateRideUseCase) Execute(ctx context.Context, cmd CreateRideCommand) (*domain.Ride, error) {
	log := uc.logger.WithFields(logger.LogFields{"user_id": cmd.DriverID})

	// 1. Caller must be a driver
	driver, err := uc.store.Users().FindByID(ctx, cmd.DriverID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}
	if !driver.HasRole(domain.RoleDriver) {
		log.Warn("create_ride_forbidden", "Caller does not hold the driver role")
		return nil, domain.Forbidden("only drivers can create rides")
	}

	// 2. Resolve the vehicle
	vehicle, err := uc.resolveVehicle(ctx, driver, log)
	if err != nil {
		return nil, err
	}

	// 3. Validate input against the vehicle
	now := uc.now()
	input, err := domain.ParseRide(domain.RideDraft{
		DeparturePoint:   cmd.DeparturePoint,
		DestinationPoint: cmd.DestinationPoint,
		Route:            cmd.Route,
		DepartureTime:    cmd.DepartureTime,
		Capacity:         cmd.Capacity,
		PricePassenger:   cmd.PricePassenger,
		VehicleSeats:     vehicle.Capacity,
		Now:              now,
	})
	if err != nil {
		return nil, err
	}

	// 4. Persist
	ride := domain.NewRide(driver, vehicle, input, now)
	if err := uc.store.Rides().Create(ctx, ride); err != nil {
		return nil, fmt.Errorf("failed to save ride: %w", err)
	}
	log = log.WithFields(logger.LogFields{"ride_id": ride.ID})
	log.Info("ride_created", "Ride created")

	// 5. Denormalized driver list; the ride exists either way
	if err := uc.store.Users().AddRide(ctx, driver.ID, ride.ID); err != nil {
		log.Error("driver_rides_update_failed", err)
	}

	publishEvent(ctx, uc.eventPublisher, log, domain.RideCreatedEvent{
		RideID:        ride.ID,
		DriverID:      ride.DriverID,
		DepartureTime: ride.DepartureTime,
		Capacity:      ride.Capacity,
		CreatedAt:     ride.CreatedAt,
	})
	return ride, nil
}

// resolveVehicle looks the vehicle up by the stored id, falling back to the
// owner query. A vehicle found through the fallback is written back onto
// the user.
func (uc *CreateRideUseCase) resolveVehicle(ctx context.Context, driver *domain.User, log logger.Logger) (*domain.Vehicle, error) {
	if driver.VehicleID != "" {
		vehicle, err := uc.store.Vehicles().FindByID(ctx, driver.VehicleID)
		if err == nil {
			return vehicle, nil
		}
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, fmt.Errorf("failed to load vehicle: %w", err)
		}
	}

	vehicle, err := uc.store.Vehicles().FindByOwner(ctx, driver.ID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		if driver.VehicleID == "" {
			return nil, domain.Forbidden("you need a registered vehicle to create rides")
		}
		return nil, domain.NotFound("vehicle not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle: %w", err)
	}

	log.WithFields(logger.LogFields{
		"stale_vehicle_id": driver.VehicleID,
		"vehicle_id":       vehicle.ID,
	}).Warn("vehicle_id_repaired", "Vehicle recovered by owner, updating user")
	driver.VehicleID = vehicle.ID
	driver.UpdatedAt = uc.now()
	if err := uc.store.Users().Update(ctx, driver); err != nil {
		log.Error("vehicle_id_repair_failed", err)
	}
	return vehicle, nil
}
