package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

type RegisterVehicleCommand struct {
	OwnerID  string
	Brand    string
	Model    string
	Plate    string
	Capacity int
	Color    string
	Photo    string
}

// VehicleService registers a driver's single vehicle.
type VehicleService struct {
	store  domain.Store
	logger logger.Logger
	now    Clock
}

func NewVehicleService(store domain.Store, logger logger.Logger, now Clock) *VehicleService {
	return &VehicleService{store: store, logger: logger, now: now}
}

func plateTaken() error {
	return domain.Invalid(domain.FieldErrors{"plate": "is already registered"})
}

// Register creates the vehicle and promotes the owner to driver in one
// transaction.
func (s *VehicleService) Register(ctx context.Context, cmd RegisterVehicleCommand) (*domain.Vehicle, error) {
	log := s.logger.WithFields(logger.LogFields{"user_id": cmd.OwnerID})

	owner, err := s.store.Users().FindByID(ctx, cmd.OwnerID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}
	if owner.VehicleID != "" {
		return nil, domain.Conflict("you already have a registered vehicle")
	}
	if _, err := s.store.Vehicles().FindByOwner(ctx, owner.ID); err == nil {
		return nil, domain.Conflict("you already have a registered vehicle")
	} else if !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("failed to check vehicles: %w", err)
	}

	draft := domain.VehicleDraft{
		Brand:    cmd.Brand,
		Model:    cmd.Model,
		Plate:    cmd.Plate,
		Capacity: cmd.Capacity,
		Color:    cmd.Color,
		Photo:    cmd.Photo,
	}
	if err := domain.Check(domain.ValidateVehicle, draft); err != nil {
		return nil, err
	}
	plate := domain.NormalizePlate(cmd.Plate)
	if _, err := s.store.Vehicles().FindByPlate(ctx, plate); err == nil {
		return nil, plateTaken()
	} else if !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("failed to check plate: %w", err)
	}

	var vehicle *domain.Vehicle
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		owner, err := tx.GetUser(ctx, cmd.OwnerID)
		if err != nil {
			return notFoundAs(err, "user not found")
		}
		if owner.VehicleID != "" {
			return domain.Conflict("you already have a registered vehicle")
		}

		now := s.now()
		vehicle = &domain.Vehicle{
			OwnerID:   owner.ID,
			Brand:     strings.TrimSpace(cmd.Brand),
			Model:     strings.TrimSpace(cmd.Model),
			Plate:     plate,
			Capacity:  cmd.Capacity,
			Color:     strings.TrimSpace(cmd.Color),
			Photo:     strings.TrimSpace(cmd.Photo),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateVehicle(ctx, vehicle); err != nil {
			return err
		}

		owner.AddRole(domain.RoleDriver)
		owner.CurrentRole = domain.RoleDriver
		owner.VehicleID = vehicle.ID
		owner.UpdatedAt = now
		return tx.UpdateUser(ctx, owner)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, plateTaken()
		}
		if domain.KindOf(err) != domain.KindInternal {
			return nil, err
		}
		return nil, fmt.Errorf("failed to register vehicle: %w", err)
	}

	log.WithFields(logger.LogFields{"vehicle_id": vehicle.ID}).Info("vehicle_registered", "Vehicle registered")
	return vehicle, nil
}

// Get returns a vehicle to its owner.
func (s *VehicleService) Get(ctx context.Context, callerID, vehicleID string) (*domain.Vehicle, error) {
	vehicle, err := s.store.Vehicles().FindByID(ctx, vehicleID)
	if err != nil {
		return nil, notFoundAs(err, "vehicle not found")
	}
	if vehicle.OwnerID != callerID {
		return nil, domain.Forbidden("you can only view your own vehicle")
	}
	return vehicle, nil
}
