// Package app wires infrastructure chosen by configuration.
package app

import (
	"context"
	"fmt"

	"ride-share/internal/ride-service/domain"
	"ride-share/internal/ride-service/infrastructure/messaging"
	"ride-share/internal/ride-service/infrastructure/repository"
	"ride-share/internal/ride-service/service"
	"ride-share/pkg/auth"
	"ride-share/pkg/cache"
	"ride-share/pkg/config"
	"ride-share/pkg/db"
	"ride-share/pkg/logger"
	"ride-share/pkg/mongodb"
	"ride-share/pkg/rabbitmq"
)

// OpenStore connects the backend named by STORE_DRIVER and prepares its
// schema.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.Store, error) {
	log = log.WithFields(logger.LogFields{"store": cfg.Store.Driver})

	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.NewConnection(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return repository.NewPostgresStore(pool, cfg.Store.MaxAttempts, log), nil

	case "mongo":
		client, err := mongodb.Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		store := repository.NewMongoStore(client, cfg.Mongo.Database, cfg.Store.MaxAttempts, log)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return store, nil

	case "memory":
		log.Warn("memory_store", "Using the in-memory store, data is lost on restart")
		return repository.NewMemoryStore(cfg.Store.MaxAttempts), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

// OpenRevoker returns a Redis-backed revocation list when REDIS_URL is set,
// and a process-local one otherwise. The returned func releases it.
func OpenRevoker(ctx context.Context, cfg *config.Config, log logger.Logger) (auth.Revoker, func(), error) {
	if cfg.Redis.URL == "" {
		log.Warn("revoker_in_memory", "REDIS_URL not set, revoked tokens are tracked per process")
		return auth.NewMemoryRevoker(), func() {}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis.URL, log)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedisRevoker(client), func() { _ = client.Close() }, nil
}

// Publisher is an event publisher plus its shutdown hook.
type Publisher struct {
	service.EventPublisher
	Rabbit *rabbitmq.Connection
	close  func()
}

func (p *Publisher) Close() { p.close() }

// OpenPublisher connects the broker named by EVENTS_BROKER.
func OpenPublisher(cfg *config.Config, log logger.Logger) (*Publisher, error) {
	switch cfg.Events.Broker {
	case "rabbitmq":
		conn, err := rabbitmq.NewConnection(cfg, log)
		if err != nil {
			return nil, err
		}
		return &Publisher{
			EventPublisher: messaging.NewRabbitMQEventPublisher(conn, log),
			Rabbit:         conn,
			close:          conn.Close,
		}, nil

	case "kafka":
		pub := messaging.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		return &Publisher{
			EventPublisher: pub,
			close: func() {
				if err := pub.Close(); err != nil {
					log.Error("kafka_writer_close_failed", err)
				}
			},
		}, nil

	case "none":
		return &Publisher{EventPublisher: service.NopPublisher{}, close: func() {}}, nil
	}
	return nil, fmt.Errorf("unsupported events broker %q", cfg.Events.Broker)
}
