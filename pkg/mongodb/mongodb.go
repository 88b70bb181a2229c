package mongodb

import (
	"context"
	"fmt"
	"time"

	"ride-share/pkg/config"
	"ride-share/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Connect opens a client against cfg.Mongo.URI and verifies it with a
// ping. Transactions need the server to run as a replica set.
func Connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*mongo.Client, error) {
	log.WithFields(logger.LogFields{"database": cfg.Mongo.Database}).Info("mongo_connect", "Connecting to MongoDB...")

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	log.Info("mongo_connected", "Successfully connected to MongoDB")
	return client, nil
}
