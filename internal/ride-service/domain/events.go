package domain

import "time"

// Event type names, also used as routing keys.
const (
	EventRideCreated          = "ride.created"
	EventRideRequested        = "ride.requested"
	EventRideRequestCancelled = "ride.request_cancelled"
	EventRideCancelled        = "ride.cancelled"
	EventRideFinished         = "ride.finished"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	// Recipients are the users to notify.
	Recipients() []string
	AggregateID() string
}

// RideCreatedEvent is raised when a driver publishes a ride
type RideCreatedEvent struct {
	RideID        string    `json:"rideId"`
	DriverID      string    `json:"driverId"`
	DepartureTime time.Time `json:"departureTime"`
	Capacity      int       `json:"capacity"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (e RideCreatedEvent) EventType() string     { return EventRideCreated }
func (e RideCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }
func (e RideCreatedEvent) Recipients() []string  { return nil }
func (e RideCreatedEvent) AggregateID() string   { return e.RideID }

// RideRequestedEvent is raised when a passenger reserves seats
type RideRequestedEvent struct {
	RideID         string    `json:"rideId"`
	DriverID       string    `json:"driverId"`
	PassengerID    string    `json:"passengerId"`
	PassengerName  string    `json:"passengerName"`
	Tickets        int       `json:"tickets"`
	AvailableSeats int       `json:"availableSeats"`
	RequestedAt    time.Time `json:"requestedAt"`
}

func (e RideRequestedEvent) EventType() string     { return EventRideRequested }
func (e RideRequestedEvent) OccurredAt() time.Time { return e.RequestedAt }
func (e RideRequestedEvent) Recipients() []string  { return []string{e.DriverID} }
func (e RideRequestedEvent) AggregateID() string   { return e.RideID }

// RideRequestCancelledEvent is raised when a passenger gives up their seats
type RideRequestCancelledEvent struct {
	RideID         string    `json:"rideId"`
	DriverID       string    `json:"driverId"`
	PassengerID    string    `json:"passengerId"`
	Released       int       `json:"released"`
	AvailableSeats int       `json:"availableSeats"`
	CancelledAt    time.Time `json:"cancelledAt"`
}

func (e RideRequestCancelledEvent) EventType() string     { return EventRideRequestCancelled }
func (e RideRequestCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }
func (e RideRequestCancelledEvent) Recipients() []string  { return []string{e.DriverID} }
func (e RideRequestCancelledEvent) AggregateID() string   { return e.RideID }

// RideCancelledEvent is raised when the driver cancels a ride
type RideCancelledEvent struct {
	RideID       string    `json:"rideId"`
	DriverID     string    `json:"driverId"`
	PassengerIDs []string  `json:"passengerIds"`
	CancelledAt  time.Time `json:"cancelledAt"`
}

func (e RideCancelledEvent) EventType() string     { return EventRideCancelled }
func (e RideCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }
func (e RideCancelledEvent) Recipients() []string  { return e.PassengerIDs }
func (e RideCancelledEvent) AggregateID() string   { return e.RideID }

// RideFinishedEvent is raised when the driver finalizes a ride
type RideFinishedEvent struct {
	RideID       string    `json:"rideId"`
	DriverID     string    `json:"driverId"`
	PassengerIDs []string  `json:"passengerIds"`
	FinishedAt   time.Time `json:"finishedAt"`
}

func (e RideFinishedEvent) EventType() string     { return EventRideFinished }
func (e RideFinishedEvent) OccurredAt() time.Time { return e.FinishedAt }
func (e RideFinishedEvent) Recipients() []string  { return e.PassengerIDs }
func (e RideFinishedEvent) AggregateID() string   { return e.RideID }

// EventEnvelope is the wire form of a DomainEvent.
type EventEnvelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Recipients []string    `json:"recipients"`
	Payload    DomainEvent `json:"payload"`
}

// NewEnvelope wraps event for publishing.
func NewEnvelope(event DomainEvent) EventEnvelope {
	return EventEnvelope{
		Type:       event.EventType(),
		OccurredAt: event.OccurredAt(),
		Recipients: event.Recipients(),
		Payload:    event,
	}
}
