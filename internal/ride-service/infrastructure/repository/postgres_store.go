package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements domain.Store on PostgreSQL. Transactions run
// at SERIALIZABLE isolation and are retried on serialization failures.
type PostgresStore struct {
	db          *pgxpool.Pool
	maxAttempts int
	logger      logger.Logger
}

func NewPostgresStore(db *pgxpool.Pool, maxAttempts int, log logger.Logger) *PostgresStore {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &PostgresStore{db: db, maxAttempts: maxAttempts, logger: log}
}

func (s *PostgresStore) Rides() domain.RideRepository       { return postgresRides{s.db} }
func (s *PostgresStore) Users() domain.UserRepository       { return postgresUsers{s.db} }
func (s *PostgresStore) Vehicles() domain.VehicleRepository { return postgresVehicles{s.db} }

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *PostgresStore) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		s.logger.WithFields(logger.LogFields{
			"attempt": attempt,
		}).Debug("tx_retry", "Serialization conflict, retrying transaction")
	}
	return domain.ErrTooManyAttempts
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, postgresTx{tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrDocumentNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

type postgresTx struct{ tx pgx.Tx }

func (t postgresTx) GetRide(ctx context.Context, id string) (*domain.Ride, error) {
	return getRide(ctx, t.tx, id)
}

func (t postgresTx) UpdateRide(ctx context.Context, ride *domain.Ride) error {
	return updateRide(ctx, t.tx, ride)
}

func (t postgresTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, t.tx, "id", id)
}

// UpdateUser writes the whole document, ride id lists included.
func (t postgresTx) UpdateUser(ctx context.Context, user *domain.User) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE users SET
			name = $2, last_name = $3, contact_number = $4, photo = $5,
			roles = $6, current_role = $7, vehicle_id = $8,
			rides = $9, requests = $10, is_active = $11, updated_at = NOW()
		WHERE id = $1
	`,
		user.ID, user.Name, user.LastName, user.ContactNumber, user.Photo,
		rolesToStrings(user.Roles), string(user.CurrentRole), user.VehicleID,
		nonNil(user.Rides), nonNil(user.Requests), user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrDocumentNotFound)
	}
	return nil
}

func (t postgresTx) CreateVehicle(ctx context.Context, vehicle *domain.Vehicle) error {
	return postgresVehicles{t.tx}.Create(ctx, vehicle)
}

// rides

const rideColumns = `
	id, driver_id, driver_name, driver_contact, vehicle_id, vehicle,
	departure_point, destination_point, route, departure_time,
	capacity, available_seats, price_passenger, status, passengers,
	created_at, updated_at, finished_at`

func scanRide(row pgx.Row) (*domain.Ride, error) {
	var (
		r          domain.Ride
		status     string
		vehicle    []byte
		passengers []byte
	)
	err := row.Scan(
		&r.ID, &r.DriverID, &r.DriverName, &r.DriverContact, &r.VehicleID, &vehicle,
		&r.DeparturePoint, &r.DestinationPoint, &r.Route, &r.DepartureTime,
		&r.Capacity, &r.AvailableSeats, &r.PricePassenger, &status, &passengers,
		&r.CreatedAt, &r.UpdatedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.RideStatus(status)
	if err := json.Unmarshal(vehicle, &r.Vehicle); err != nil {
		return nil, fmt.Errorf("decode vehicle snapshot: %w", err)
	}
	if err := json.Unmarshal(passengers, &r.Passengers); err != nil {
		return nil, fmt.Errorf("decode passengers: %w", err)
	}
	if r.Passengers == nil {
		r.Passengers = []domain.PassengerTicket{}
	}
	return &r, nil
}

func collectRides(rows pgx.Rows) ([]*domain.Ride, error) {
	defer rows.Close()
	var out []*domain.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func getRide(ctx context.Context, q querier, id string) (*domain.Ride, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrDocumentNotFound)
	}
	r, err := scanRide(q.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "ride "+id)
	}
	return r, nil
}

func rideDocuments(ride *domain.Ride) (vehicle, passengers []byte, err error) {
	if vehicle, err = json.Marshal(ride.Vehicle); err != nil {
		return nil, nil, err
	}
	tickets := ride.Passengers
	if tickets == nil {
		tickets = []domain.PassengerTicket{}
	}
	if passengers, err = json.Marshal(tickets); err != nil {
		return nil, nil, err
	}
	return vehicle, passengers, nil
}

func updateRide(ctx context.Context, q querier, ride *domain.Ride) error {
	vehicle, passengers, err := rideDocuments(ride)
	if err != nil {
		return fmt.Errorf("encode ride: %w", err)
	}
	tag, err := q.Exec(ctx, `
		UPDATE rides SET
			vehicle = $2, departure_point = $3, destination_point = $4, route = $5,
			departure_time = $6, available_seats = $7, price_passenger = $8,
			status = $9, passengers = $10, updated_at = $11, finished_at = $12
		WHERE id = $1
	`,
		ride.ID, string(vehicle), ride.DeparturePoint, ride.DestinationPoint, ride.Route,
		ride.DepartureTime, ride.AvailableSeats, ride.PricePassenger,
		string(ride.Status), string(passengers), ride.UpdatedAt, ride.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update ride: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ride %s: %w", ride.ID, domain.ErrDocumentNotFound)
	}
	return nil
}

type postgresRides struct{ db querier }

func (r postgresRides) Create(ctx context.Context, ride *domain.Ride) error {
	if ride.ID == "" {
		ride.ID = uuid.NewString()
	}
	vehicle, passengers, err := rideDocuments(ride)
	if err != nil {
		return fmt.Errorf("encode ride: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO rides (`+rideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		ride.ID, ride.DriverID, ride.DriverName, ride.DriverContact, ride.VehicleID, string(vehicle),
		ride.DeparturePoint, ride.DestinationPoint, ride.Route, ride.DepartureTime,
		ride.Capacity, ride.AvailableSeats, ride.PricePassenger, string(ride.Status), string(passengers),
		ride.CreatedAt, ride.UpdatedAt, ride.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

func (r postgresRides) FindByID(ctx context.Context, id string) (*domain.Ride, error) {
	return getRide(ctx, r.db, id)
}

func (r postgresRides) Update(ctx context.Context, ride *domain.Ride) error {
	return updateRide(ctx, r.db, ride)
}

func (r postgresRides) FindByStatus(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE status = $1
		ORDER BY departure_time ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query rides by status: %w", err)
	}
	return collectRides(rows)
}

func (r postgresRides) FindByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE driver_id = $1
		ORDER BY created_at DESC
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("query rides by driver: %w", err)
	}
	return collectRides(rows)
}

func (r postgresRides) FindByDriverAndStatus(ctx context.Context, driverID string, status domain.RideStatus) ([]*domain.Ride, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE driver_id = $1 AND status = $2
		ORDER BY departure_time ASC
	`, driverID, string(status))
	if err != nil {
		return nil, fmt.Errorf("query rides by driver and status: %w", err)
	}
	return collectRides(rows)
}

// users

const userColumns = `
	id, name, last_name, university_id, email, contact_number, password_hash,
	photo, roles, current_role, vehicle_id, rides, requests, is_active,
	created_at, updated_at`

func getUser(ctx context.Context, q querier, column, value string) (*domain.User, error) {
	if column == "id" {
		if _, err := uuid.Parse(value); err != nil {
			return nil, fmt.Errorf("user %s: %w", value, domain.ErrDocumentNotFound)
		}
	}
	var (
		u     domain.User
		roles []string
		role  string
	)
	err := q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value).Scan(
		&u.ID, &u.Name, &u.LastName, &u.UniversityID, &u.Email, &u.ContactNumber, &u.PasswordHash,
		&u.Photo, &roles, &role, &u.VehicleID, &u.Rides, &u.Requests, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user "+value)
	}
	for _, r := range roles {
		u.Roles = append(u.Roles, domain.Role(r))
	}
	u.CurrentRole = domain.Role(role)
	return &u, nil
}

type postgresUsers struct{ db querier }

func (r postgresUsers) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		user.ID, user.Name, user.LastName, user.UniversityID, user.Email, user.ContactNumber, user.PasswordHash,
		user.Photo, rolesToStrings(user.Roles), string(user.CurrentRole), user.VehicleID,
		nonNil(user.Rides), nonNil(user.Requests), user.IsActive,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", user.Email, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r postgresUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, r.db, "id", id)
}

func (r postgresUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getUser(ctx, r.db, "email", email)
}

// Update writes profile fields; rides and requests are left untouched.
func (r postgresUsers) Update(ctx context.Context, user *domain.User) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET
			name = $2, last_name = $3, contact_number = $4, photo = $5,
			roles = $6, current_role = $7, vehicle_id = $8, is_active = $9,
			updated_at = NOW()
		WHERE id = $1
	`,
		user.ID, user.Name, user.LastName, user.ContactNumber, user.Photo,
		rolesToStrings(user.Roles), string(user.CurrentRole), user.VehicleID, user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrDocumentNotFound)
	}
	return nil
}

func (r postgresUsers) UpdatePassword(ctx context.Context, userID, passwordHash string, at time.Time) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("user %s: %w", userID, domain.ErrDocumentNotFound)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, passwordHash, at,
	)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrDocumentNotFound)
	}
	return nil
}

func (r postgresUsers) editList(ctx context.Context, userID, column, expr, rideID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("user %s: %w", userID, domain.ErrDocumentNotFound)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET `+column+` = `+expr+`, updated_at = NOW() WHERE id = $1`,
		userID, rideID,
	)
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrDocumentNotFound)
	}
	return nil
}

func (r postgresUsers) AddRide(ctx context.Context, userID, rideID string) error {
	return r.editList(ctx, userID, "rides",
		`CASE WHEN $2 = ANY(rides) THEN rides ELSE array_append(rides, $2::text) END`, rideID)
}

func (r postgresUsers) RemoveRide(ctx context.Context, userID, rideID string) error {
	return r.editList(ctx, userID, "rides", `array_remove(rides, $2::text)`, rideID)
}

func (r postgresUsers) AddRequest(ctx context.Context, userID, rideID string) error {
	return r.editList(ctx, userID, "requests",
		`CASE WHEN $2 = ANY(requests) THEN requests ELSE array_append(requests, $2::text) END`, rideID)
}

func (r postgresUsers) RemoveRequest(ctx context.Context, userID, rideID string) error {
	return r.editList(ctx, userID, "requests", `array_remove(requests, $2::text)`, rideID)
}

// vehicles

const vehicleColumns = `id, owner_id, brand, model, plate, capacity, color, photo, created_at, updated_at`

func scanVehicle(row pgx.Row, what string) (*domain.Vehicle, error) {
	var v domain.Vehicle
	err := row.Scan(&v.ID, &v.OwnerID, &v.Brand, &v.Model, &v.Plate, &v.Capacity, &v.Color, &v.Photo, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "vehicle "+what)
	}
	return &v, nil
}

type postgresVehicles struct{ db querier }

func (r postgresVehicles) Create(ctx context.Context, v *domain.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
		v.UpdatedAt = v.CreatedAt
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO vehicles (`+vehicleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, v.ID, v.OwnerID, v.Brand, v.Model, v.Plate, v.Capacity, v.Color, v.Photo, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("plate %s: %w", v.Plate, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

func (r postgresVehicles) FindByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("vehicle %s: %w", id, domain.ErrDocumentNotFound)
	}
	return scanVehicle(r.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id), id)
}

func (r postgresVehicles) FindByOwner(ctx context.Context, ownerID string) (*domain.Vehicle, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, fmt.Errorf("vehicle owner %s: %w", ownerID, domain.ErrDocumentNotFound)
	}
	return scanVehicle(r.db.QueryRow(ctx, `
		SELECT `+vehicleColumns+` FROM vehicles
		WHERE owner_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, ownerID), "owner "+ownerID)
}

func (r postgresVehicles) FindByPlate(ctx context.Context, plate string) (*domain.Vehicle, error) {
	return scanVehicle(r.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE plate = $1`, plate), "plate "+plate)
}

func (r postgresVehicles) Update(ctx context.Context, v *domain.Vehicle) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE vehicles SET brand = $2, model = $3, capacity = $4, color = $5, photo = $6, updated_at = NOW()
		WHERE id = $1
	`, v.ID, v.Brand, v.Model, v.Capacity, v.Color, v.Photo)
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vehicle %s: %w", v.ID, domain.ErrDocumentNotFound)
	}
	return nil
}

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
