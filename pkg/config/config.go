package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Store struct {
		Driver      string // postgres, mongo or memory
		MaxAttempts int
	}
	DB struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
		SSLMode  string
	}
	Mongo struct {
		URI      string
		Database string
	}
	Redis struct {
		URL string
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Kafka struct {
		Brokers []string
		Topic   string
		GroupID string
	}
	Events struct {
		Broker string // rabbitmq, kafka or none
	}
	JWT struct {
		Secret string
		TTL    time.Duration
	}
	Services struct {
		RideService int
		AuthService int
	}
	Accounts struct {
		EmailDomain string
	}
	Log struct {
		Debug bool
	}
}

var defaults = map[string]interface{}{
	"STORE_DRIVER":       "postgres",
	"STORE_MAX_ATTEMPTS": 5,
	"DB_HOST":            "localhost",
	"DB_PORT":            5432,
	"DB_USER":            "rideshare_user",
	"DB_PASS":            "rideshare_pass",
	"DB_NAME":            "rideshare_db",
	"DB_SSLMODE":         "disable",
	"MONGO_URL":          "mongodb://localhost:27017/?replicaSet=rs0",
	"MONGO_DB":           "rideshare",
	"REDIS_URL":          "",
	"RABBITMQ_HOST":      "localhost",
	"RABBITMQ_PORT":      5672,
	"RABBITMQ_USER":      "guest",
	"RABBITMQ_PASS":      "guest",
	"KAFKA_BROKERS":      "localhost:9092",
	"KAFKA_TOPIC":        "ride_events",
	"KAFKA_GROUP_ID":     "ride-notifications",
	"EVENTS_BROKER":      "rabbitmq",
	"JWT_SECRET":         "change-me",
	"JWT_TTL":            "24h",
	"RIDE_SERVICE_PORT":  3000,
	"AUTH_SERVICE_PORT":  3005,
	"EMAIL_DOMAIN":       "unisabana.edu.co",
	"LOG_DEBUG":          false,
}

// LoadConfig reads filename (dotenv format) when it exists, then lets
// environment variables override every key.
func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not read config file %s: %w", filename, err)
		}
	}

	cfg := &Config{}
	cfg.Store.Driver = strings.ToLower(v.GetString("STORE_DRIVER"))
	cfg.Store.MaxAttempts = v.GetInt("STORE_MAX_ATTEMPTS")
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetInt("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASS")
	cfg.DB.Database = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")
	cfg.Mongo.URI = v.GetString("MONGO_URL")
	cfg.Mongo.Database = v.GetString("MONGO_DB")
	cfg.Redis.URL = v.GetString("REDIS_URL")
	cfg.RabbitMQ.Host = v.GetString("RABBITMQ_HOST")
	cfg.RabbitMQ.Port = v.GetInt("RABBITMQ_PORT")
	cfg.RabbitMQ.User = v.GetString("RABBITMQ_USER")
	cfg.RabbitMQ.Password = v.GetString("RABBITMQ_PASS")
	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")
	cfg.Kafka.GroupID = v.GetString("KAFKA_GROUP_ID")
	cfg.Events.Broker = strings.ToLower(v.GetString("EVENTS_BROKER"))
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.TTL = v.GetDuration("JWT_TTL")
	cfg.Services.RideService = v.GetInt("RIDE_SERVICE_PORT")
	cfg.Services.AuthService = v.GetInt("AUTH_SERVICE_PORT")
	cfg.Accounts.EmailDomain = strings.TrimPrefix(v.GetString("EMAIL_DOMAIN"), "@")
	cfg.Log.Debug = v.GetBool("LOG_DEBUG")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Events.Broker {
	case "rabbitmq", "kafka", "none":
	default:
		return fmt.Errorf("unsupported EVENTS_BROKER %q", c.Events.Broker)
	}
	if c.Store.MaxAttempts < 1 {
		return fmt.Errorf("STORE_MAX_ATTEMPTS must be positive, got %d", c.Store.MaxAttempts)
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}

// PostgresDSN builds the connection string for pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Database,
		c.DB.SSLMode,
	)
}

// RabbitMQURL builds the AMQP dial URL.
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
