package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ride-share/internal/ride-service/domain"

	"github.com/google/uuid"
)

// DefaultMemoryAttempts bounds RunTransaction retries on the memory store.
const DefaultMemoryAttempts = 32

type docKey struct {
	collection string
	id         string
}

// MemoryStore keeps documents in process with a version per document.
// Transactions record the versions they read and commit only if none of
// them moved, otherwise they are re-run.
type MemoryStore struct {
	mu          sync.Mutex
	rides       map[string]*domain.Ride
	users       map[string]*domain.User
	vehicles    map[string]*domain.Vehicle
	versions    map[docKey]uint64
	maxAttempts int
}

func NewMemoryStore(maxAttempts int) *MemoryStore {
	if maxAttempts < 1 {
		maxAttempts = DefaultMemoryAttempts
	}
	return &MemoryStore{
		rides:       make(map[string]*domain.Ride),
		users:       make(map[string]*domain.User),
		vehicles:    make(map[string]*domain.Vehicle),
		versions:    make(map[docKey]uint64),
		maxAttempts: maxAttempts,
	}
}

func (s *MemoryStore) Rides() domain.RideRepository       { return memoryRides{s} }
func (s *MemoryStore) Users() domain.UserRepository       { return memoryUsers{s} }
func (s *MemoryStore) Vehicles() domain.VehicleRepository { return memoryVehicles{s} }

func (s *MemoryStore) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// bump must be called with mu held.
func (s *MemoryStore) bump(collection, id string) {
	s.versions[docKey{collection, id}]++
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memoryTx{
			store: s,
			read:  make(map[docKey]uint64),
			rides: make(map[string]*domain.Ride),
			users: make(map[string]*domain.User),
			dirty: make(map[docKey]bool),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committed, err := tx.commit()
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
	}
	return domain.ErrTooManyAttempts
}

type memoryTx struct {
	store    *MemoryStore
	read     map[docKey]uint64
	rides    map[string]*domain.Ride
	users    map[string]*domain.User
	vehicles []*domain.Vehicle
	dirty    map[docKey]bool
}

func (tx *memoryTx) GetRide(ctx context.Context, id string) (*domain.Ride, error) {
	if r, ok := tx.rides[id]; ok {
		return r.Clone(), nil
	}
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{"rides", id}
	tx.read[key] = s.versions[key]
	r, ok := s.rides[id]
	if !ok {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrDocumentNotFound)
	}
	tx.rides[id] = r.Clone()
	return r.Clone(), nil
}

func (tx *memoryTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := tx.users[id]; ok {
		return u.Clone(), nil
	}
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{"users", id}
	tx.read[key] = s.versions[key]
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrDocumentNotFound)
	}
	tx.users[id] = u.Clone()
	return u.Clone(), nil
}

func (tx *memoryTx) UpdateRide(ctx context.Context, ride *domain.Ride) error {
	if _, err := tx.GetRide(ctx, ride.ID); err != nil {
		return err
	}
	tx.rides[ride.ID] = ride.Clone()
	tx.dirty[docKey{"rides", ride.ID}] = true
	return nil
}

func (tx *memoryTx) UpdateUser(ctx context.Context, user *domain.User) error {
	if _, err := tx.GetUser(ctx, user.ID); err != nil {
		return err
	}
	tx.users[user.ID] = user.Clone()
	tx.dirty[docKey{"users", user.ID}] = true
	return nil
}

// CreateVehicle is buffered until commit, where the plate is checked.
func (tx *memoryTx) CreateVehicle(ctx context.Context, vehicle *domain.Vehicle) error {
	if vehicle.ID == "" {
		vehicle.ID = uuid.NewString()
	}
	tx.vehicles = append(tx.vehicles, vehicle.Clone())
	return nil
}

func (tx *memoryTx) commit() (bool, error) {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, version := range tx.read {
		if s.versions[key] != version {
			return false, nil
		}
	}
	for _, vehicle := range tx.vehicles {
		if s.plateTaken(vehicle.Plate) {
			return false, fmt.Errorf("plate %s: %w", vehicle.Plate, domain.ErrDuplicate)
		}
	}
	for _, vehicle := range tx.vehicles {
		s.vehicles[vehicle.ID] = vehicle
	}
	for key := range tx.dirty {
		switch key.collection {
		case "rides":
			s.rides[key.id] = tx.rides[key.id].Clone()
		case "users":
			s.users[key.id] = tx.users[key.id].Clone()
		}
		s.bump(key.collection, key.id)
	}
	return true, nil
}

// plateTaken must be called with mu held.
func (s *MemoryStore) plateTaken(plate string) bool {
	for _, existing := range s.vehicles {
		if existing.Plate == plate {
			return true
		}
	}
	return false
}

type memoryRides struct{ s *MemoryStore }

func (r memoryRides) Create(ctx context.Context, ride *domain.Ride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ride.ID == "" {
		ride.ID = uuid.NewString()
	}
	if _, exists := r.s.rides[ride.ID]; exists {
		return fmt.Errorf("ride %s already exists", ride.ID)
	}
	r.s.rides[ride.ID] = ride.Clone()
	r.s.bump("rides", ride.ID)
	return nil
}

func (r memoryRides) FindByID(ctx context.Context, id string) (*domain.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ride, ok := r.s.rides[id]
	if !ok {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrDocumentNotFound)
	}
	return ride.Clone(), nil
}

func (r memoryRides) Update(ctx context.Context, ride *domain.Ride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rides[ride.ID]; !ok {
		return fmt.Errorf("ride %s: %w", ride.ID, domain.ErrDocumentNotFound)
	}
	r.s.rides[ride.ID] = ride.Clone()
	r.s.bump("rides", ride.ID)
	return nil
}

func (r memoryRides) filter(keep func(*domain.Ride) bool) []*domain.Ride {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Ride
	for _, ride := range r.s.rides {
		if keep(ride) {
			out = append(out, ride.Clone())
		}
	}
	return out
}

func (r memoryRides) FindByStatus(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error) {
	out := r.filter(func(ride *domain.Ride) bool { return ride.Status == status })
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (r memoryRides) FindByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	out := r.filter(func(ride *domain.Ride) bool { return ride.DriverID == driverID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memoryRides) FindByDriverAndStatus(ctx context.Context, driverID string, status domain.RideStatus) ([]*domain.Ride, error) {
	out := r.filter(func(ride *domain.Ride) bool { return ride.DriverID == driverID && ride.Status == status })
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

type memoryUsers struct{ s *MemoryStore }

func (u memoryUsers) Create(ctx context.Context, user *domain.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, domain.ErrDuplicate)
		}
	}
	u.s.users[user.ID] = user.Clone()
	u.s.bump("users", user.ID)
	return nil
}

func (u memoryUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrDocumentNotFound)
	}
	return user.Clone(), nil
}

func (u memoryUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Email == email {
			return user.Clone(), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, domain.ErrDocumentNotFound)
}

// Update writes profile fields; the ride id lists are left untouched.
func (u memoryUsers) Update(ctx context.Context, user *domain.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	stored, ok := u.s.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrDocumentNotFound)
	}
	next := user.Clone()
	next.Rides = append([]string(nil), stored.Rides...)
	next.Requests = append([]string(nil), stored.Requests...)
	u.s.users[user.ID] = next
	u.s.bump("users", user.ID)
	return nil
}

func (u memoryUsers) UpdatePassword(ctx context.Context, userID, passwordHash string, at time.Time) error {
	return u.mutateList(userID, func(user *domain.User) {
		user.PasswordHash = passwordHash
		user.UpdatedAt = at
	})
}

func (u memoryUsers) mutateList(userID string, fn func(user *domain.User)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrDocumentNotFound)
	}
	next := user.Clone()
	fn(next)
	u.s.users[userID] = next
	u.s.bump("users", userID)
	return nil
}

func (u memoryUsers) AddRide(ctx context.Context, userID, rideID string) error {
	return u.mutateList(userID, func(user *domain.User) { user.Rides = domain.AppendID(user.Rides, rideID) })
}

func (u memoryUsers) RemoveRide(ctx context.Context, userID, rideID string) error {
	return u.mutateList(userID, func(user *domain.User) { user.Rides = domain.RemoveID(user.Rides, rideID) })
}

func (u memoryUsers) AddRequest(ctx context.Context, userID, rideID string) error {
	return u.mutateList(userID, func(user *domain.User) { user.Requests = domain.AppendID(user.Requests, rideID) })
}

func (u memoryUsers) RemoveRequest(ctx context.Context, userID, rideID string) error {
	return u.mutateList(userID, func(user *domain.User) { user.Requests = domain.RemoveID(user.Requests, rideID) })
}

type memoryVehicles struct{ s *MemoryStore }

func (v memoryVehicles) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if vehicle.ID == "" {
		vehicle.ID = uuid.NewString()
	}
	if v.s.plateTaken(vehicle.Plate) {
		return fmt.Errorf("plate %s: %w", vehicle.Plate, domain.ErrDuplicate)
	}
	v.s.vehicles[vehicle.ID] = vehicle.Clone()
	return nil
}

func (v memoryVehicles) FindByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	vehicle, ok := v.s.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, domain.ErrDocumentNotFound)
	}
	return vehicle.Clone(), nil
}

func (v memoryVehicles) find(keep func(*domain.Vehicle) bool, what string) (*domain.Vehicle, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, vehicle := range v.s.vehicles {
		if keep(vehicle) {
			return vehicle.Clone(), nil
		}
	}
	return nil, fmt.Errorf("vehicle %s: %w", what, domain.ErrDocumentNotFound)
}

func (v memoryVehicles) FindByOwner(ctx context.Context, ownerID string) (*domain.Vehicle, error) {
	return v.find(func(x *domain.Vehicle) bool { return x.OwnerID == ownerID }, "owner "+ownerID)
}

func (v memoryVehicles) FindByPlate(ctx context.Context, plate string) (*domain.Vehicle, error) {
	return v.find(func(x *domain.Vehicle) bool { return x.Plate == plate }, "plate "+plate)
}

func (v memoryVehicles) Update(ctx context.Context, vehicle *domain.Vehicle) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.vehicles[vehicle.ID]; !ok {
		return fmt.Errorf("vehicle %s: %w", vehicle.ID, domain.ErrDocumentNotFound)
	}
	v.s.vehicles[vehicle.ID] = vehicle.Clone()
	return nil
}
