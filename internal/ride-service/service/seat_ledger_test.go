package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/internal/ride-service/infrastructure/repository"
)

func TestCreateRide(t *testing.T) {
	l := newLedger(t)
	l.addDriver(t, "d1", 4)

	ride := l.mustCreateRide(t, "d1", 3)
	if ride.Status != domain.StatusActive || ride.AvailableSeats != 3 || ride.Capacity != 3 {
		t.Errorf("ride = %+v", ride)
	}
	if ride.Vehicle.Brand != "Renault" {
		t.Errorf("vehicle snapshot = %+v", ride.Vehicle)
	}
	if !contains(l.user(t, "d1").Rides, ride.ID) {
		t.Error("ride id missing from driver rides")
	}
	if got := l.events.types(); len(got) != 1 || got[0] != domain.EventRideCreated {
		t.Errorf("events = %v", got)
	}
}

func TestCreateRideCapacityAboveVehicle(t *testing.T) {
	l := newLedger(t)
	l.addDriver(t, "d1", 4)

	_, err := l.create.Execute(context.Background(), rideCommand("d1", "5", time.Hour))
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindValidation {
		t.Fatalf("err = %v, want validation failure", err)
	}
	if _, ok := de.Fields["capacity"]; !ok || len(de.Fields) != 1 {
		t.Errorf("fields = %v, want only capacity", de.Fields)
	}
}

func TestCreateRideAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("passenger only", func(t *testing.T) {
		l := newLedger(t)
		l.addUser(t, "p1")
		_, err := l.create.Execute(ctx, rideCommand("p1", "2", time.Hour))
		if !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("err = %v, want forbidden", err)
		}
	})

	t.Run("driver without vehicle", func(t *testing.T) {
		l := newLedger(t)
		l.addUser(t, "d1", domain.RoleDriver)
		_, err := l.create.Execute(ctx, rideCommand("d1", "2", time.Hour))
		if !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("err = %v, want forbidden", err)
		}
	})

	t.Run("stale vehicle id and no vehicle", func(t *testing.T) {
		l := newLedger(t)
		u := l.addUser(t, "d1", domain.RoleDriver)
		u.VehicleID = "gone"
		_ = l.store.Users().Update(ctx, u)
		_, err := l.create.Execute(ctx, rideCommand("d1", "2", time.Hour))
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.create.Execute(ctx, rideCommand("ghost", "2", time.Hour))
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want not found", err)
		}
	})
}

func TestCreateRideRepairsVehicleID(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	d := l.addDriver(t, "d1", 4)
	realID := d.VehicleID

	d.VehicleID = "stale"
	_ = l.store.Users().Update(ctx, d)

	ride := l.mustCreateRide(t, "d1", 2)
	if ride.VehicleID != realID {
		t.Errorf("ride vehicle = %s, want %s", ride.VehicleID, realID)
	}
	if got := l.user(t, "d1").VehicleID; got != realID {
		t.Errorf("user vehicleId = %s, want repaired %s", got, realID)
	}
}

func TestRequestRide(t *testing.T) {
	l := newLedger(t)
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	ride := l.mustCreateRide(t, "d1", 4)

	got := l.mustRequest(t, ride.ID, "p1", "Puente del Común", "Chía")
	if got.AvailableSeats != 2 || len(got.Passengers) != 2 {
		t.Errorf("after request: available %d, tickets %d", got.AvailableSeats, len(got.Passengers))
	}
	assertBalanced(t, l.ride(t, ride.ID))
	if !contains(l.user(t, "p1").Requests, ride.ID) {
		t.Error("ride id missing from passenger requests")
	}
	if types := l.events.types(); types[len(types)-1] != domain.EventRideRequested {
		t.Errorf("events = %v", types)
	}
}

func TestRequestRideRejections(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	l.addUser(t, "p2")
	ride := l.mustCreateRide(t, "d1", 2)
	l.mustRequest(t, ride.ID, "p1", "a")

	tests := []struct {
		name string
		cmd  RequestRideCommand
		kind domain.Kind
		msg  string
	}{
		{"duplicate", RequestRideCommand{ride.ID, "p1", 1, []string{"b"}}, domain.KindConflict, "already have a request"},
		{"own ride", RequestRideCommand{ride.ID, "d1", 1, []string{"b"}}, domain.KindConflict, "your own ride"},
		{"too many seats", RequestRideCommand{ride.ID, "p2", 2, []string{"a", "b"}}, domain.KindConflict, "only 1 seat(s) left"},
		{"points mismatch", RequestRideCommand{ride.ID, "p2", 2, []string{"a"}}, domain.KindValidation, ""},
		{"blank point", RequestRideCommand{ride.ID, "p2", 1, []string{" "}}, domain.KindValidation, ""},
		{"zero tickets", RequestRideCommand{ride.ID, "p2", 0, nil}, domain.KindValidation, ""},
		{"missing ride", RequestRideCommand{"nope", "p2", 1, []string{"a"}}, domain.KindNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.request.Execute(ctx, tt.cmd)
			if domain.KindOf(err) != tt.kind {
				t.Fatalf("err = %v, want kind %s", err, tt.kind)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("err = %q, want %q", err, tt.msg)
			}
		})
	}
	assertBalanced(t, l.ride(t, ride.ID))
}

func TestRequestRideDuplicateRegardlessOfTickets(t *testing.T) {
	l := newLedger(t)
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	ride := l.mustCreateRide(t, "d1", 4)
	l.mustRequest(t, ride.ID, "p1", "a", "b")

	for n := 1; n <= 2; n++ {
		points := make([]string, n)
		for i := range points {
			points[i] = fmt.Sprintf("point %d", i)
		}
		_, err := l.request.Execute(context.Background(), RequestRideCommand{ride.ID, "p1", n, points})
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("second request of %d seat(s): err = %v, want conflict", n, err)
		}
	}
}

func TestRequestRideOnInactiveRide(t *testing.T) {
	l := newLedger(t)
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	ride := l.mustCreateRide(t, "d1", 4)
	if _, err := l.cancel.Execute(context.Background(), CancelRideCommand{ride.ID, "d1"}); err != nil {
		t.Fatal(err)
	}
	_, err := l.request.Execute(context.Background(), RequestRideCommand{ride.ID, "p1", 1, []string{"a"}})
	if err == nil || !strings.Contains(err.Error(), "not available") {
		t.Fatalf("err = %v", err)
	}
}

func TestConcurrentRequestsForThreeOfFourSeats(t *testing.T) {
	l := newLedgerOn(t, repository.NewMemoryStore(1000))
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	l.addUser(t, "p2")
	ride := l.mustCreateRide(t, "d1", 4)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 2)
	)
	for i, user := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			<-start
			_, errs[i] = l.request.Execute(context.Background(), RequestRideCommand{
				RideID: ride.ID, UserID: user, Tickets: 3, Points: []string{"a", "b", "c"},
			})
		}(i, user)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, domain.ErrConflict) || !strings.Contains(err.Error(), "only 1 seat(s) left"):
			t.Errorf("loser err = %v, want conflict naming 1 seat", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d requests succeeded, want exactly 1", succeeded)
	}
	final := l.ride(t, ride.ID)
	if final.AvailableSeats != 1 {
		t.Errorf("AvailableSeats = %d, want 1", final.AvailableSeats)
	}
	assertBalanced(t, final)
}

func TestConcurrentRequestsNeverOversell(t *testing.T) {
	l := newLedgerOn(t, repository.NewMemoryStore(1000))
	l.addDriver(t, "d1", 4)
	ride := l.mustCreateRide(t, "d1", 4)

	const callers = 12
	for i := 0; i < callers; i++ {
		l.addUser(t, fmt.Sprintf("p%d", i))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		seats int
		start = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			n := 1 + i%2
			points := []string{"a", "b"}[:n]
			_, err := l.request.Execute(context.Background(), RequestRideCommand{
				RideID: ride.ID, UserID: fmt.Sprintf("p%d", i), Tickets: n, Points: points,
			})
			if err == nil {
				mu.Lock()
				seats += n
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	final := l.ride(t, ride.ID)
	assertBalanced(t, final)
	if final.AvailableSeats < 0 {
		t.Fatalf("AvailableSeats = %d", final.AvailableSeats)
	}
	if seats != final.TicketCount() {
		t.Errorf("granted %d seats but ride holds %d tickets", seats, final.TicketCount())
	}
}

func TestCancelRideRequestRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	l.addUser(t, "p2")
	ride := l.mustCreateRide(t, "d1", 4)
	l.mustRequest(t, ride.ID, "p2", "x")
	before := l.ride(t, ride.ID).AvailableSeats

	l.mustRequest(t, ride.ID, "p1", "a", "b")
	got, err := l.cancelReq.Execute(ctx, CancelRideRequestCommand{ride.ID, "p1"})
	if err != nil {
		t.Fatalf("cancel request: %v", err)
	}
	if got.AvailableSeats != before {
		t.Errorf("AvailableSeats = %d, want %d", got.AvailableSeats, before)
	}
	if contains(l.user(t, "p1").Requests, ride.ID) {
		t.Error("ride id still in passenger requests")
	}
	if !l.ride(t, ride.ID).HasPassenger("p2") {
		t.Error("other passenger's tickets removed")
	}

	again := l.mustRequest(t, ride.ID, "p1", "a", "b")
	if again.AvailableSeats != before-2 {
		t.Errorf("after re-request AvailableSeats = %d, want %d", again.AvailableSeats, before-2)
	}
	assertBalanced(t, l.ride(t, ride.ID))
}

func TestCancelRideRequestRejections(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	ride := l.mustCreateRide(t, "d1", 4)

	_, err := l.cancelReq.Execute(ctx, CancelRideRequestCommand{ride.ID, "p1"})
	if !errors.Is(err, domain.ErrConflict) || !strings.Contains(err.Error(), "no reservation") {
		t.Errorf("no tickets: err = %v", err)
	}

	_, err = l.cancelReq.Execute(ctx, CancelRideRequestCommand{"missing", "p1"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing ride: err = %v", err)
	}

	l.mustRequest(t, ride.ID, "p1", "a")
	if _, err := l.cancel.Execute(ctx, CancelRideCommand{ride.ID, "d1"}); err != nil {
		t.Fatal(err)
	}
	_, err = l.cancelReq.Execute(ctx, CancelRideRequestCommand{ride.ID, "p1"})
	if !errors.Is(err, domain.ErrConflict) || !strings.Contains(err.Error(), "already cancelled") {
		t.Errorf("cancelled ride: err = %v", err)
	}
}

func TestCancelRide(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	l.addUser(t, "p2")
	ride := l.mustCreateRide(t, "d1", 4)
	l.mustRequest(t, ride.ID, "p1", "a", "b")
	l.mustRequest(t, ride.ID, "p2", "c")

	if _, err := l.cancel.Execute(ctx, CancelRideCommand{ride.ID, "p1"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("non-driver cancel: err = %v, want forbidden", err)
	}

	got, err := l.cancel.Execute(ctx, CancelRideCommand{ride.ID, "d1"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Errorf("Status = %s", got.Status)
	}
	if contains(l.user(t, "d1").Rides, ride.ID) {
		t.Error("ride still in driver rides")
	}
	for _, p := range []string{"p1", "p2"} {
		if contains(l.user(t, p).Requests, ride.ID) {
			t.Errorf("ride still in %s requests", p)
		}
	}

	_, err = l.cancel.Execute(ctx, CancelRideCommand{ride.ID, "d1"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second cancel: err = %v, want conflict", err)
	}
	if n := strings.Count(strings.Join(l.events.types(), ","), domain.EventRideCancelled); n != 1 {
		t.Errorf("%d cancellation events, want 1", n)
	}

	if _, err := l.cancel.Execute(ctx, CancelRideCommand{"missing", "d1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing ride: err = %v", err)
	}
}

// failingUsers fails RemoveRequest for one user.
type failingUsers struct {
	domain.UserRepository
	failFor string
}

func (u failingUsers) RemoveRequest(ctx context.Context, userID, rideID string) error {
	if userID == u.failFor {
		return errors.New("connection reset")
	}
	return u.UserRepository.RemoveRequest(ctx, userID, rideID)
}

type failingStore struct {
	*repository.MemoryStore
	failFor string
}

func (s failingStore) Users() domain.UserRepository {
	return failingUsers{UserRepository: s.MemoryStore.Users(), failFor: s.failFor}
}

func TestCancelRideFanOutIsBestEffort(t *testing.T) {
	mem := repository.NewMemoryStore(0)
	l := newLedgerWith(t, mem, failingStore{MemoryStore: mem, failFor: "p1"})
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	l.addUser(t, "p2")
	l.addUser(t, "p3")
	ride := l.mustCreateRide(t, "d1", 4)
	for _, p := range []string{"p1", "p2", "p3"} {
		l.mustRequest(t, ride.ID, p, "stop")
	}

	if _, err := l.cancel.Execute(context.Background(), CancelRideCommand{ride.ID, "d1"}); err != nil {
		t.Fatalf("cancel should succeed despite fan-out failure: %v", err)
	}
	if l.ride(t, ride.ID).Status != domain.StatusCancelled {
		t.Error("ride not cancelled")
	}
	if !contains(l.user(t, "p1").Requests, ride.ID) {
		t.Error("p1 update was expected to fail and stay stale")
	}
	for _, p := range []string{"p2", "p3"} {
		if contains(l.user(t, p).Requests, ride.ID) {
			t.Errorf("%s requests not updated after p1 failure", p)
		}
	}
}

func TestFinalizeRide(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addDriver(t, "d1", 4)

	if _, err := l.finalize.Execute(ctx, FinalizeRideCommand{"d1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no active ride: err = %v", err)
	}

	late, err := l.create.Execute(ctx, rideCommand("d1", "2", 5*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	early, err := l.create.Execute(ctx, rideCommand("d1", "2", time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	got, err := l.finalize.Execute(ctx, FinalizeRideCommand{"d1"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got.ID != early.ID || got.Status != domain.StatusFinished || got.FinishedAt == nil {
		t.Errorf("finalized %s (%s), want earliest %s", got.ID, got.Status, early.ID)
	}
	if l.ride(t, late.ID).Status != domain.StatusActive {
		t.Error("later ride should stay active")
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	l := newLedger(t)
	l.events.err = errors.New("broker down")
	l.addDriver(t, "d1", 4)
	l.addUser(t, "p1")
	ride := l.mustCreateRide(t, "d1", 2)
	l.mustRequest(t, ride.ID, "p1", "a")
	if len(l.events.types()) != 2 {
		t.Errorf("events = %v", l.events.types())
	}
}
