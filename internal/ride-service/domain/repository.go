package domain

import (
	"context"
	"time"
)

// Store is the transactional document store every component shares. It is
// built once at startup and injected.
type Store interface {
	// RunTransaction runs fn against a consistent snapshot and commits its
	// writes atomically. When a concurrent writer touched the same documents
	// the whole function is re-run on fresh reads, up to a bounded number of
	// attempts (ErrTooManyAttempts). An error returned by fn aborts without
	// retry and is returned unchanged.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Rides() RideRepository
	Users() UserRepository
	Vehicles() VehicleRepository

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is the view of the store inside RunTransaction. Reads return
// ErrDocumentNotFound for missing documents.
type Tx interface {
	GetRide(ctx context.Context, id string) (*Ride, error)
	UpdateRide(ctx context.Context, ride *Ride) error
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	// CreateVehicle assigns an id when vehicle.ID is empty. A taken plate
	// fails with ErrDuplicate.
	CreateVehicle(ctx context.Context, vehicle *Vehicle) error
}

// RideRepository is the non-transactional port for ride persistence
type RideRepository interface {
	// Create assigns an id when ride.ID is empty.
	Create(ctx context.Context, ride *Ride) error
	FindByID(ctx context.Context, id string) (*Ride, error)
	Update(ctx context.Context, ride *Ride) error
	// FindByStatus returns rides in status ordered by departure time.
	FindByStatus(ctx context.Context, status RideStatus) ([]*Ride, error)
	// FindByDriver returns the driver's rides, newest first.
	FindByDriver(ctx context.Context, driverID string) ([]*Ride, error)
	FindByDriverAndStatus(ctx context.Context, driverID string, status RideStatus) ([]*Ride, error)
}

// UserRepository persists users. The ride id lists are only ever changed
// through the Add/Remove methods, each an atomic set operation.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string, at time.Time) error

	AddRide(ctx context.Context, userID, rideID string) error
	RemoveRide(ctx context.Context, userID, rideID string) error
	AddRequest(ctx context.Context, userID, rideID string) error
	RemoveRequest(ctx context.Context, userID, rideID string) error
}

type VehicleRepository interface {
	Create(ctx context.Context, vehicle *Vehicle) error
	FindByID(ctx context.Context, id string) (*Vehicle, error)
	FindByOwner(ctx context.Context, ownerID string) (*Vehicle, error)
	FindByPlate(ctx context.Context, plate string) (*Vehicle, error)
	Update(ctx context.Context, vehicle *Vehicle) error
}
