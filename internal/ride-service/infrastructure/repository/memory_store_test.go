package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ride-share/internal/ride-service/domain"
)

func seedRide(t *testing.T, s *MemoryStore, capacity int) *domain.Ride {
	t.Helper()
	ride := &domain.Ride{
		DriverID:       "driver",
		Capacity:       capacity,
		AvailableSeats: capacity,
		Status:         domain.StatusActive,
		Passengers:     []domain.PassengerTicket{},
		CreatedAt:      time.Now(),
	}
	if err := s.Rides().Create(context.Background(), ride); err != nil {
		t.Fatalf("Create ride: %v", err)
	}
	return ride
}

func TestMemoryTransactionCommits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	ride := seedRide(t, s, 3)

	err := s.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		r, err := tx.GetRide(ctx, ride.ID)
		if err != nil {
			return err
		}
		r.AvailableSeats = 1
		return tx.UpdateRide(ctx, r)
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	got, _ := s.Rides().FindByID(ctx, ride.ID)
	if got.AvailableSeats != 1 {
		t.Errorf("AvailableSeats = %d, want 1", got.AvailableSeats)
	}
}

func TestMemoryTransactionErrorAbortsWithoutWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	ride := seedRide(t, s, 3)
	boom := errors.New("boom")
	calls := 0

	err := s.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		calls++
		r, _ := tx.GetRide(ctx, ride.ID)
		r.AvailableSeats = 0
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
	got, _ := s.Rides().FindByID(ctx, ride.ID)
	if got.AvailableSeats != 3 {
		t.Errorf("write leaked from aborted transaction")
	}
}

func TestMemoryTransactionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	ride := seedRide(t, s, 3)
	calls := 0

	err := s.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		calls++
		r, err := tx.GetRide(ctx, ride.ID)
		if err != nil {
			return err
		}
		if calls == 1 {
			// concurrent writer lands between our read and commit
			other, _ := s.Rides().FindByID(ctx, ride.ID)
			other.AvailableSeats = 2
			if err := s.Rides().Update(ctx, other); err != nil {
				return err
			}
		}
		r.AvailableSeats--
		return tx.UpdateRide(ctx, r)
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	got, _ := s.Rides().FindByID(ctx, ride.ID)
	if got.AvailableSeats != 1 {
		t.Errorf("AvailableSeats = %d, want 1 (decrement applied to fresh read)", got.AvailableSeats)
	}
}

func TestMemoryTransactionGivesUp(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	ride := seedRide(t, s, 3)

	err := s.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		r, _ := tx.GetRide(ctx, ride.ID)
		other, _ := s.Rides().FindByID(ctx, ride.ID)
		if err := s.Rides().Update(ctx, other); err != nil {
			return err
		}
		return tx.UpdateRide(ctx, r)
	})
	if !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("err = %v, want ErrTooManyAttempts", err)
	}
}

func TestMemoryTransactionConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(1000)
	ride := seedRide(t, s, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
				r, err := tx.GetRide(ctx, ride.ID)
				if err != nil {
					return err
				}
				r.PricePassenger++
				return tx.UpdateRide(ctx, r)
			})
			if err != nil {
				t.Errorf("RunTransaction: %v", err)
			}
		}()
	}
	wg.Wait()
	got, _ := s.Rides().FindByID(ctx, ride.ID)
	if got.PricePassenger != 20 {
		t.Errorf("PricePassenger = %d, want 20 (lost update)", got.PricePassenger)
	}
}

func TestMemoryUserLists(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	user := &domain.User{Email: "a@unisabana.edu.co", Name: "Ana"}
	if err := s.Users().Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	users := s.Users()
	_ = users.AddRequest(ctx, user.ID, "r1")
	_ = users.AddRequest(ctx, user.ID, "r1")
	_ = users.AddRequest(ctx, user.ID, "r2")
	_ = users.AddRide(ctx, user.ID, "r3")

	got, _ := users.FindByID(ctx, user.ID)
	if len(got.Requests) != 2 {
		t.Errorf("Requests = %v, want r1 once and r2", got.Requests)
	}

	got.Name = "Anita"
	got.Requests = nil
	if err := users.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	_ = users.RemoveRequest(ctx, user.ID, "r1")
	got, _ = users.FindByID(ctx, user.ID)
	if got.Name != "Anita" {
		t.Errorf("Name = %q", got.Name)
	}
	if len(got.Requests) != 1 || got.Requests[0] != "r2" || len(got.Rides) != 1 {
		t.Errorf("lists = %v / %v", got.Requests, got.Rides)
	}

	if err := users.Create(ctx, &domain.User{Email: "a@unisabana.edu.co"}); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("duplicate email err = %v", err)
	}
	if err := users.AddRide(ctx, "missing", "r1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("missing user err = %v", err)
	}
}

func TestMemoryRideQueriesOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, dep := range []int{3, 1, 2} {
		r := &domain.Ride{
			DriverID:      "d1",
			Status:        domain.StatusActive,
			DepartureTime: base.Add(time.Duration(dep) * time.Hour),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Rides().Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	active, _ := s.Rides().FindByStatus(ctx, domain.StatusActive)
	for i := 1; i < len(active); i++ {
		if active[i].DepartureTime.Before(active[i-1].DepartureTime) {
			t.Fatal("FindByStatus not sorted by departure")
		}
	}
	mine, _ := s.Rides().FindByDriver(ctx, "d1")
	if len(mine) != 3 || mine[0].CreatedAt.Before(mine[2].CreatedAt) {
		t.Error("FindByDriver not newest first")
	}
}

func TestMemoryTransactionCreatesVehicle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	owner := &domain.User{ID: "u1", Email: "u1@unisabana.edu.co", Roles: []domain.Role{domain.RolePassenger}}
	if err := s.Users().Create(ctx, owner); err != nil {
		t.Fatal(err)
	}

	abort := errors.New("abort")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.CreateVehicle(ctx, &domain.Vehicle{OwnerID: "u1", Plate: "ABC123"}); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.Vehicles().FindByPlate(ctx, "ABC123"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("aborted vehicle visible: err = %v", err)
	}

	vehicle := &domain.Vehicle{OwnerID: "u1", Plate: "ABC123"}
	err = s.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		u, err := tx.GetUser(ctx, "u1")
		if err != nil {
			return err
		}
		if err := tx.CreateVehicle(ctx, vehicle); err != nil {
			return err
		}
		u.VehicleID = vehicle.ID
		return tx.UpdateUser(ctx, u)
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got, err := s.Vehicles().FindByOwner(ctx, "u1"); err != nil || got.ID != vehicle.ID {
		t.Fatalf("vehicle = %+v, err %v", got, err)
	}
	if u, _ := s.Users().FindByID(ctx, "u1"); u.VehicleID != vehicle.ID {
		t.Errorf("VehicleID = %q", u.VehicleID)
	}

	err = s.RunTransaction(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.CreateVehicle(ctx, &domain.Vehicle{OwnerID: "u2", Plate: "ABC123"})
	})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("taken plate: err = %v", err)
	}
}
