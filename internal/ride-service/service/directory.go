package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"
)

// RideView is a ride joined with its vehicle photo.
type RideView struct {
	*domain.Ride
	Image string `json:"image,omitempty"`
}

// RequestView is a ride as seen by one passenger: only their own tickets.
type RequestView struct {
	ID               string                   `json:"id"`
	DriverID         string                   `json:"driverId"`
	DriverName       string                   `json:"driverName"`
	DriverContact    string                   `json:"driverContact,omitempty"`
	Vehicle          domain.VehicleSnapshot   `json:"vehicle"`
	DeparturePoint   string                   `json:"departurePoint"`
	DestinationPoint string                   `json:"destinationPoint"`
	Route            string                   `json:"route"`
	DepartureTime    time.Time                `json:"departureTime"`
	PricePassenger   int                      `json:"pricePassenger"`
	AvailableSeats   int                      `json:"availableSeats"`
	Status           domain.RideStatus        `json:"status"`
	UserPassengers   []domain.PassengerTicket `json:"userPassengers"`
	TotalTickets     int                      `json:"totalTickets"`
}

// RideDirectory serves the read side: feeds of rides and requests.
type RideDirectory struct {
	store  domain.Store
	logger logger.Logger
	now    Clock
}

func NewRideDirectory(store domain.Store, logger logger.Logger, now Clock) *RideDirectory {
	return &RideDirectory{store: store, logger: logger, now: now}
}

// ListActiveRides returns upcoming active rides, earliest departure first.
// Rides driven by callerID are left out; pass "" for anonymous callers.
func (d *RideDirectory) ListActiveRides(ctx context.Context, callerID string) ([]RideView, error) {
	rides, err := d.store.Rides().FindByStatus(ctx, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rides: %w", err)
	}
	now := d.now()
	upcoming := make([]*domain.Ride, 0, len(rides))
	for _, r := range rides {
		if !r.DepartureTime.After(now) {
			continue
		}
		if callerID != "" && r.DriverID == callerID {
			continue
		}
		upcoming = append(upcoming, r)
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DepartureTime.Before(upcoming[j].DepartureTime)
	})
	return d.withImages(ctx, upcoming), nil
}

// ListDriverRides returns every ride the driver created, newest first.
func (d *RideDirectory) ListDriverRides(ctx context.Context, driverID string) ([]RideView, error) {
	rides, err := d.store.Rides().FindByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver rides: %w", err)
	}
	sort.SliceStable(rides, func(i, j int) bool {
		return rides[i].CreatedAt.After(rides[j].CreatedAt)
	})
	return d.withImages(ctx, rides), nil
}

// ListUserRequests resolves the user's requests list. Rides that are gone
// or cancelled are skipped.
func (d *RideDirectory) ListUserRequests(ctx context.Context, userID string) ([]RequestView, error) {
	user, err := d.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}

	views := make([]RequestView, 0, len(user.Requests))
	for _, rideID := range user.Requests {
		ride, err := d.store.Rides().FindByID(ctx, rideID)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			d.logger.WithFields(logger.LogFields{"ride_id": rideID, "user_id": userID}).
				Debug("stale_request_skipped", "Requested ride no longer exists")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load ride %s: %w", rideID, err)
		}
		if ride.Status == domain.StatusCancelled {
			continue
		}
		tickets := ride.TicketsOf(userID)
		if tickets == nil {
			tickets = []domain.PassengerTicket{}
		}
		views = append(views, RequestView{
			ID:               ride.ID,
			DriverID:         ride.DriverID,
			DriverName:       ride.DriverName,
			DriverContact:    ride.DriverContact,
			Vehicle:          ride.Vehicle,
			DeparturePoint:   ride.DeparturePoint,
			DestinationPoint: ride.DestinationPoint,
			Route:            ride.Route,
			DepartureTime:    ride.DepartureTime,
			PricePassenger:   ride.PricePassenger,
			AvailableSeats:   ride.AvailableSeats,
			Status:           ride.Status,
			UserPassengers:   tickets,
			TotalTickets:     len(tickets),
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].DepartureTime.Before(views[j].DepartureTime)
	})
	return views, nil
}

// withImages joins each ride with its vehicle photo. A failed lookup
// leaves the image empty.
func (d *RideDirectory) withImages(ctx context.Context, rides []*domain.Ride) []RideView {
	photos := make(map[string]string)
	views := make([]RideView, 0, len(rides))
	for _, r := range rides {
		photo, ok := photos[r.VehicleID]
		if !ok && r.VehicleID != "" {
			vehicle, err := d.store.Vehicles().FindByID(ctx, r.VehicleID)
			if err != nil {
				d.logger.WithFields(logger.LogFields{
					"ride_id":    r.ID,
					"vehicle_id": r.VehicleID,
				}).Warn("vehicle_lookup_failed", err.Error())
			} else {
				photo = vehicle.Photo
			}
			photos[r.VehicleID] = photo
		}
		views = append(views, RideView{Ride: r, Image: photo})
	}
	return views
}
