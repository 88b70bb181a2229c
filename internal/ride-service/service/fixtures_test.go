package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/internal/ride-service/infrastructure/repository"
	"ride-share/pkg/logger"
)

var fixedNow = time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type ledger struct {
	store     *repository.MemoryStore
	events    *recordingPublisher
	create    *CreateRideUseCase
	request   *RequestRideUseCase
	cancelReq *CancelRideRequestUseCase
	cancel    *CancelRideUseCase
	finalize  *FinalizeRideUseCase
	directory *RideDirectory
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	return newLedgerOn(t, repository.NewMemoryStore(0))
}

func newLedgerOn(t *testing.T, store *repository.MemoryStore) *ledger {
	t.Helper()
	return newLedgerWith(t, store, store)
}

// newLedgerWith lets a test wrap the store the use cases see.
func newLedgerWith(t *testing.T, mem *repository.MemoryStore, store domain.Store) *ledger {
	t.Helper()
	log := logger.Discard()
	events := &recordingPublisher{}
	return &ledger{
		store:     mem,
		events:    events,
		create:    NewCreateRideUseCase(store, events, log, clock),
		request:   NewRequestRideUseCase(store, events, log, clock),
		cancelReq: NewCancelRideRequestUseCase(store, events, log, clock),
		cancel:    NewCancelRideUseCase(store, events, log, clock),
		finalize:  NewFinalizeRideUseCase(store, events, log, clock),
		directory: NewRideDirectory(store, log, clock),
	}
}

func (l *ledger) addUser(t *testing.T, id string, roles ...domain.Role) *domain.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []domain.Role{domain.RolePassenger}
	}
	u := &domain.User{
		ID:            id,
		Name:          "User",
		LastName:      id,
		Email:         id + "@unisabana.edu.co",
		ContactNumber: "3000000000",
		Roles:         roles,
		CurrentRole:   roles[0],
		Rides:         []string{},
		Requests:      []string{},
		IsActive:      true,
	}
	if err := l.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

// addDriver creates a driver owning a vehicle with the given seats.
func (l *ledger) addDriver(t *testing.T, id string, seats int) *domain.User {
	t.Helper()
	ctx := context.Background()
	u := l.addUser(t, id, domain.RolePassenger, domain.RoleDriver)
	v := &domain.Vehicle{OwnerID: id, Brand: "Renault", Model: "Logan", Plate: "ABC" + id[len(id)-1:] + "00", Capacity: seats, Photo: "https://img/" + id}
	if err := l.store.Vehicles().Create(ctx, v); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	u.VehicleID = v.ID
	if err := l.store.Users().Update(ctx, u); err != nil {
		t.Fatal(err)
	}
	return u
}

func rideCommand(driverID string, capacity string, departIn time.Duration) CreateRideCommand {
	return CreateRideCommand{
		DriverID:         driverID,
		DeparturePoint:   "Universidad de La Sabana",
		DestinationPoint: "Calle 100",
		Route:            "Autopista Norte",
		DepartureTime:    fixedNow.Add(departIn).Format(time.RFC3339),
		Capacity:         capacity,
		PricePassenger:   "6000",
	}
}

func (l *ledger) mustCreateRide(t *testing.T, driverID string, capacity int) *domain.Ride {
	t.Helper()
	ride, err := l.create.Execute(context.Background(), rideCommand(driverID, strconv.Itoa(capacity), 2*time.Hour))
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return ride
}

func (l *ledger) mustRequest(t *testing.T, rideID, userID string, points ...string) *domain.Ride {
	t.Helper()
	ride, err := l.request.Execute(context.Background(), RequestRideCommand{
		RideID: rideID, UserID: userID, Tickets: len(points), Points: points,
	})
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	return ride
}

func (l *ledger) ride(t *testing.T, id string) *domain.Ride {
	t.Helper()
	r, err := l.store.Rides().FindByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (l *ledger) user(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := l.store.Users().FindByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func assertBalanced(t *testing.T, r *domain.Ride) {
	t.Helper()
	if !r.SeatsBalanced() {
		t.Fatalf("seat ledger broken: capacity %d, available %d, tickets %d", r.Capacity, r.AvailableSeats, r.TicketCount())
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
