package domain

import (
	"strings"
	"time"
)

// RideStatus represents the state of a ride
type RideStatus string

const (
	StatusActive    RideStatus = "active"
	StatusFinished  RideStatus = "finished"
	StatusCancelled RideStatus = "cancelled"
)

func (s RideStatus) String() string {
	return string(s)
}

func (s RideStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

// VehicleSnapshot is the vehicle as it was when the ride was created.
type VehicleSnapshot struct {
	Brand string `json:"brand" bson:"brand"`
	Model string `json:"model" bson:"model"`
	Plate string `json:"plate,omitempty" bson:"plate,omitempty"`
}

// PassengerTicket is one reserved seat. A user holding N seats has N
// tickets sharing the same UserID.
type PassengerTicket struct {
	UserID      string    `json:"userId" bson:"userId"`
	Name        string    `json:"name" bson:"name"`
	Contact     string    `json:"contact,omitempty" bson:"contact,omitempty"`
	Point       string    `json:"point" bson:"point"`
	Tickets     int       `json:"tickets" bson:"tickets"`
	RequestedAt time.Time `json:"requestedAt" bson:"requestedAt"`
}

// Ride is a trip offered by a driver with a fixed number of seats.
type Ride struct {
	ID               string            `json:"id" bson:"_id"`
	DriverID         string            `json:"driverId" bson:"driverId"`
	DriverName       string            `json:"driverName" bson:"driverName"`
	DriverContact    string            `json:"driverContact,omitempty" bson:"driverContact,omitempty"`
	VehicleID        string            `json:"vehicleId" bson:"vehicleId"`
	Vehicle          VehicleSnapshot   `json:"vehicle" bson:"vehicle"`
	DeparturePoint   string            `json:"departurePoint" bson:"departurePoint"`
	DestinationPoint string            `json:"destinationPoint" bson:"destinationPoint"`
	Route            string            `json:"route" bson:"route"`
	DepartureTime    time.Time         `json:"departureTime" bson:"departureTime"`
	Capacity         int               `json:"capacity" bson:"capacity"`
	AvailableSeats   int               `json:"availableSeats" bson:"availableSeats"`
	PricePassenger   int               `json:"pricePassenger" bson:"pricePassenger"`
	Status           RideStatus        `json:"status" bson:"status"`
	Passengers       []PassengerTicket `json:"passengers" bson:"passengers"`
	CreatedAt        time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt" bson:"updatedAt"`
	FinishedAt       *time.Time        `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`
}

// NewRide builds an active ride with every seat available.
func NewRide(driver *User, vehicle *Vehicle, in RideInput, now time.Time) *Ride {
	return &Ride{
		DriverID:      driver.ID,
		DriverName:    strings.TrimSpace(driver.Name + " " + driver.LastName),
		DriverContact: driver.ContactNumber,
		VehicleID:     vehicle.ID,
		Vehicle: VehicleSnapshot{
			Brand: vehicle.Brand,
			Model: vehicle.Model,
			Plate: vehicle.Plate,
		},
		DeparturePoint:   in.DeparturePoint,
		DestinationPoint: in.DestinationPoint,
		Route:            in.Route,
		DepartureTime:    in.DepartureTime,
		Capacity:         in.Capacity,
		AvailableSeats:   in.Capacity,
		PricePassenger:   in.PricePassenger,
		Status:           StatusActive,
		Passengers:       []PassengerTicket{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// TicketsOf returns the tickets held by userID, in reservation order.
func (r *Ride) TicketsOf(userID string) []PassengerTicket {
	var out []PassengerTicket
	for _, p := range r.Passengers {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (r *Ride) HasPassenger(userID string) bool {
	for _, p := range r.Passengers {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// PassengerIDs returns each distinct passenger once, first-seen order.
func (r *Ride) PassengerIDs() []string {
	seen := make(map[string]bool, len(r.Passengers))
	var ids []string
	for _, p := range r.Passengers {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// TicketCount is the total number of reserved seats.
func (r *Ride) TicketCount() int {
	return len(r.Passengers)
}

// SeatsBalanced reports whether availableSeats and the tickets add up to
// capacity.
func (r *Ride) SeatsBalanced() bool {
	return r.AvailableSeats >= 0 &&
		r.AvailableSeats <= r.Capacity &&
		r.AvailableSeats+r.TicketCount() == r.Capacity
}

// CheckRequest reports why userID may not reserve seats on the ride in its
// current state.
func (r *Ride) CheckRequest(userID string, seats int) error {
	if r.Status != StatusActive {
		return Conflict("ride is not available")
	}
	if r.DriverID == userID {
		return Conflict("you cannot request your own ride")
	}
	if r.HasPassenger(userID) {
		return Conflict("you already have a request on this ride")
	}
	if seats > r.AvailableSeats {
		return Conflict("not enough seats available: only %d seat(s) left", r.AvailableSeats)
	}
	return nil
}

// Reserve appends one ticket per pickup point and takes the seats.
func (r *Ride) Reserve(passenger *User, points []string, now time.Time) error {
	if err := r.CheckRequest(passenger.ID, len(points)); err != nil {
		return err
	}
	name := strings.TrimSpace(passenger.Name + " " + passenger.LastName)
	for _, point := range points {
		r.Passengers = append(r.Passengers, PassengerTicket{
			UserID:      passenger.ID,
			Name:        name,
			Contact:     passenger.ContactNumber,
			Point:       strings.TrimSpace(point),
			Tickets:     1,
			RequestedAt: now,
		})
	}
	r.AvailableSeats -= len(points)
	r.UpdatedAt = now
	return nil
}

// Release drops every ticket held by userID and returns their seats.
func (r *Ride) Release(userID string, now time.Time) (int, error) {
	if r.Status == StatusCancelled {
		return 0, Conflict("ride is already cancelled")
	}
	kept := make([]PassengerTicket, 0, len(r.Passengers))
	released := 0
	for _, p := range r.Passengers {
		if p.UserID == userID {
			released++
			continue
		}
		kept = append(kept, p)
	}
	if released == 0 {
		return 0, Conflict("you have no reservation on this ride")
	}
	r.Passengers = kept
	r.AvailableSeats += released
	r.UpdatedAt = now
	return released, nil
}

// Cancel moves an active ride to cancelled.
func (r *Ride) Cancel(now time.Time) error {
	switch r.Status {
	case StatusCancelled:
		return Conflict("ride is already cancelled")
	case StatusFinished:
		return Conflict("ride is already finished")
	}
	r.Status = StatusCancelled
	r.UpdatedAt = now
	return nil
}

// Finish moves an active ride to finished.
func (r *Ride) Finish(now time.Time) error {
	if r.Status != StatusActive {
		return Conflict("ride is %s", r.Status)
	}
	r.Status = StatusFinished
	r.FinishedAt = &now
	r.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (r *Ride) Clone() *Ride {
	c := *r
	c.Passengers = append([]PassengerTicket(nil), r.Passengers...)
	if c.Passengers == nil {
		c.Passengers = []PassengerTicket{}
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
