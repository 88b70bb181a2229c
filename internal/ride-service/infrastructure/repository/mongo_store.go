package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ridesCollection    = "rides"
	usersCollection    = "users"
	vehiclesCollection = "vehicles"
)

// MongoStore implements domain.Store on MongoDB. Transactions use
// session.WithTransaction, which re-runs the callback on transient write
// conflicts.
type MongoStore struct {
	client      *mongo.Client
	db          *mongo.Database
	maxAttempts int
	logger      logger.Logger
}

func NewMongoStore(client *mongo.Client, database string, maxAttempts int, log logger.Logger) *MongoStore {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &MongoStore{
		client:      client,
		db:          client.Database(database),
		maxAttempts: maxAttempts,
		logger:      log,
	}
}

// EnsureIndexes creates the unique and query indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		vehiclesCollection: {
			{Keys: bson.D{{Key: "plate", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		},
		ridesCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "departureTime", Value: 1}}},
			{Keys: bson.D{{Key: "driverId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) Rides() domain.RideRepository {
	return mongoRides{s.db.Collection(ridesCollection)}
}

func (s *MongoStore) Users() domain.UserRepository {
	return mongoUsers{s.db.Collection(usersCollection)}
}

func (s *MongoStore) Vehicles() domain.VehicleRepository {
	return mongoVehicles{s.db.Collection(vehiclesCollection)}
}

func (s *MongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *MongoStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	attempts := 0
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		attempts++
		if attempts > s.maxAttempts {
			return nil, domain.ErrTooManyAttempts
		}
		if attempts > 1 {
			s.logger.WithFields(logger.LogFields{"attempt": attempts}).Debug("tx_retry", "Write conflict, retrying transaction")
		}
		return nil, fn(sc, mongoTx{db: s.db})
	})
	return err
}

type mongoTx struct{ db *mongo.Database }

func (t mongoTx) GetRide(ctx context.Context, id string) (*domain.Ride, error) {
	return findOne[domain.Ride](ctx, t.db.Collection(ridesCollection), bson.M{"_id": id}, "ride "+id)
}

func (t mongoTx) UpdateRide(ctx context.Context, ride *domain.Ride) error {
	return replaceOne(ctx, t.db.Collection(ridesCollection), ride.ID, ride, "ride")
}

func (t mongoTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return findOne[domain.User](ctx, t.db.Collection(usersCollection), bson.M{"_id": id}, "user "+id)
}

func (t mongoTx) UpdateUser(ctx context.Context, user *domain.User) error {
	return replaceOne(ctx, t.db.Collection(usersCollection), user.ID, user, "user")
}

func (t mongoTx) CreateVehicle(ctx context.Context, vehicle *domain.Vehicle) error {
	return mongoVehicles{t.db.Collection(vehiclesCollection)}.Create(ctx, vehicle)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, what string) (*T, error) {
	var doc T
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", what, domain.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	return &doc, nil
}

func findMany[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	var docs []*T
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return docs, nil
}

func replaceOne(ctx context.Context, coll *mongo.Collection, id string, doc interface{}, what string) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return fmt.Errorf("replace %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrDocumentNotFound)
	}
	return nil
}

func updateOne(ctx context.Context, coll *mongo.Collection, id string, update bson.M, what string) error {
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrDocumentNotFound)
	}
	return nil
}

func insertOne(ctx context.Context, coll *mongo.Collection, doc interface{}, what string) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", what, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", what, err)
	}
	return nil
}

type mongoRides struct{ coll *mongo.Collection }

func (r mongoRides) Create(ctx context.Context, ride *domain.Ride) error {
	if ride.ID == "" {
		ride.ID = uuid.NewString()
	}
	if ride.Passengers == nil {
		ride.Passengers = []domain.PassengerTicket{}
	}
	return insertOne(ctx, r.coll, ride, "ride "+ride.ID)
}

func (r mongoRides) FindByID(ctx context.Context, id string) (*domain.Ride, error) {
	return findOne[domain.Ride](ctx, r.coll, bson.M{"_id": id}, "ride "+id)
}

func (r mongoRides) Update(ctx context.Context, ride *domain.Ride) error {
	return replaceOne(ctx, r.coll, ride.ID, ride, "ride")
}

func (r mongoRides) FindByStatus(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error) {
	return findMany[domain.Ride](ctx, r.coll, bson.M{"status": status}, bson.D{{Key: "departureTime", Value: 1}})
}

func (r mongoRides) FindByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	return findMany[domain.Ride](ctx, r.coll, bson.M{"driverId": driverID}, bson.D{{Key: "createdAt", Value: -1}})
}

func (r mongoRides) FindByDriverAndStatus(ctx context.Context, driverID string, status domain.RideStatus) ([]*domain.Ride, error) {
	return findMany[domain.Ride](ctx, r.coll,
		bson.M{"driverId": driverID, "status": status},
		bson.D{{Key: "departureTime", Value: 1}})
}

type mongoUsers struct{ coll *mongo.Collection }

func (r mongoUsers) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Rides = nonNil(user.Rides)
	user.Requests = nonNil(user.Requests)
	return insertOne(ctx, r.coll, user, "email "+user.Email)
}

func (r mongoUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.coll, bson.M{"_id": id}, "user "+id)
}

func (r mongoUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.coll, bson.M{"email": email}, "user "+email)
}

// Update writes profile fields; rides and requests are left untouched.
func (r mongoUsers) Update(ctx context.Context, user *domain.User) error {
	return updateOne(ctx, r.coll, user.ID, bson.M{"$set": bson.M{
		"name":          user.Name,
		"lastName":      user.LastName,
		"contactNumber": user.ContactNumber,
		"photo":         user.Photo,
		"roles":         user.Roles,
		"currentRole":   user.CurrentRole,
		"vehicleId":     user.VehicleID,
		"isActive":      user.IsActive,
		"updatedAt":     user.UpdatedAt,
	}}, "user")
}

func (r mongoUsers) UpdatePassword(ctx context.Context, userID, passwordHash string, at time.Time) error {
	return updateOne(ctx, r.coll, userID, bson.M{"$set": bson.M{
		"passwordHash": passwordHash,
		"updatedAt":    at,
	}}, "user")
}

func (r mongoUsers) AddRide(ctx context.Context, userID, rideID string) error {
	return updateOne(ctx, r.coll, userID, bson.M{"$addToSet": bson.M{"rides": rideID}}, "user")
}

func (r mongoUsers) RemoveRide(ctx context.Context, userID, rideID string) error {
	return updateOne(ctx, r.coll, userID, bson.M{"$pull": bson.M{"rides": rideID}}, "user")
}

func (r mongoUsers) AddRequest(ctx context.Context, userID, rideID string) error {
	return updateOne(ctx, r.coll, userID, bson.M{"$addToSet": bson.M{"requests": rideID}}, "user")
}

func (r mongoUsers) RemoveRequest(ctx context.Context, userID, rideID string) error {
	return updateOne(ctx, r.coll, userID, bson.M{"$pull": bson.M{"requests": rideID}}, "user")
}

type mongoVehicles struct{ coll *mongo.Collection }

func (r mongoVehicles) Create(ctx context.Context, v *domain.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return insertOne(ctx, r.coll, v, "plate "+v.Plate)
}

func (r mongoVehicles) FindByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	return findOne[domain.Vehicle](ctx, r.coll, bson.M{"_id": id}, "vehicle "+id)
}

func (r mongoVehicles) FindByOwner(ctx context.Context, ownerID string) (*domain.Vehicle, error) {
	return findOne[domain.Vehicle](ctx, r.coll, bson.M{"ownerId": ownerID}, "vehicle owner "+ownerID)
}

func (r mongoVehicles) FindByPlate(ctx context.Context, plate string) (*domain.Vehicle, error) {
	return findOne[domain.Vehicle](ctx, r.coll, bson.M{"plate": plate}, "vehicle plate "+plate)
}

func (r mongoVehicles) Update(ctx context.Context, v *domain.Vehicle) error {
	return replaceOne(ctx, r.coll, v.ID, v, "vehicle")
}
