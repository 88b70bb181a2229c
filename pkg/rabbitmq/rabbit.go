package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ride-share/pkg/config"
	"ride-share/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxRetries    = 10
	retryInterval = 3 * time.Second
	maxBackoff    = 30 * time.Second

	// consumerPrefetch bounds unacknowledged deliveries per consumer.
	consumerPrefetch = 16

	// RideExchange carries every ride domain event, keyed by event type.
	RideExchange = "ride_topic"
	// NotificationQueue feeds the websocket notifier.
	NotificationQueue = "ride_notifications"
	// NotificationBinding routes every ride event to NotificationQueue.
	NotificationBinding = "ride.#"
)

var ErrNotConnected = errors.New("rabbitmq: not connected")

// Connection owns one AMQP connection plus a publishing channel and
// re-dials with backoff when the broker drops it. Topology is re-declared
// on every successful dial.
type Connection struct {
	logger logger.Logger
	dsn    string

	mu         sync.RWMutex // guards conn, pubChannel, lost
	conn       *amqp.Connection
	pubChannel *amqp.Channel
	lost       chan *amqp.Error

	done      chan struct{}
	closeOnce sync.Once
}

func NewConnection(cfg *config.Config, log logger.Logger) (*Connection, error) {
	c := &Connection{
		logger: log,
		dsn:    cfg.RabbitMQURL(),
		done:   make(chan struct{}),
	}

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = c.dial(); err == nil {
			log.Info("rabbitmq_connect", "RabbitMQ connection established")
			go c.watch()
			return c, nil
		}
		log.WithFields(logger.LogFields{"attempt": attempt, "max": maxRetries}).Error("rabbitmq_connect_retry", err)
		time.Sleep(retryInterval)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

// dial opens a fresh connection, declares topology and swaps it in.
func (c *Connection) dial() error {
	conn, err := amqp.Dial(c.dsn)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if err := declareTopology(conn); err != nil {
		conn.Close()
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open publisher channel: %w", err)
	}

	lost := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.mu.Lock()
	c.conn, c.pubChannel, c.lost = conn, ch, lost
	c.mu.Unlock()
	return nil
}

func declareTopology(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open setup channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(RideExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", RideExchange, err)
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", NotificationQueue, err)
	}
	if err := ch.QueueBind(NotificationQueue, NotificationBinding, RideExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", NotificationQueue, RideExchange, err)
	}
	return nil
}

// watch re-dials whenever the broker closes the connection, until Close.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		lost := c.lost
		c.mu.RUnlock()

		select {
		case <-c.done:
			return
		case amqpErr, ok := <-lost:
			if !ok || amqpErr == nil {
				return
			}
			c.logger.Error("rabbitmq_disconnect", amqpErr)
			c.markLost()
			if !c.redial() {
				return
			}
		}
	}
}

func (c *Connection) markLost() {
	c.mu.Lock()
	c.conn, c.pubChannel = nil, nil
	c.mu.Unlock()
}

// redial retries with growing backoff. It reports false if Close was
// called first.
func (c *Connection) redial() bool {
	backoff := time.Second
	for {
		select {
		case <-c.done:
			return false
		case <-time.After(backoff):
		}
		err := c.dial()
		if err == nil {
			c.logger.Info("rabbitmq_reconnect_success", "RabbitMQ connection re-established")
			return true
		}
		c.logger.WithFields(logger.LogFields{"retry_in": backoff.String()}).Error("rabbitmq_reconnect_failed", err)
		backoff = backoff * 3 / 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Publish sends a persistent JSON message. It is safe for concurrent use.
func (c *Connection) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pubChannel == nil {
		return ErrNotConnected
	}
	return c.pubChannel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

// Consume delivers queueName to handler one message at a time, reopening
// the consumer channel after broker disconnects. handler must Ack or Nack.
func (c *Connection) Consume(queueName string, handler func(amqp.Delivery)) error {
	log := c.logger.WithFields(logger.LogFields{"queue": queueName})
	go func() {
		for {
			deliveries, ch, err := c.openConsumer(queueName)
			if err != nil {
				log.Error("consumer_open_failed", err)
				select {
				case <-c.done:
					return
				case <-time.After(retryInterval):
				}
				continue
			}
			log.Info("consumer_running", "Consumer started")

			if stopped := c.drain(deliveries, handler); stopped {
				ch.Close()
				log.Info("consumer_shutdown", "Consumer stopped")
				return
			}
			log.Warn("consumer_interrupted", "Delivery channel closed, reopening")
		}
	}()
	return nil
}

func (c *Connection) openConsumer(queueName string) (<-chan amqp.Delivery, *amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", queueName, err)
	}
	return deliveries, ch, nil
}

// drain handles deliveries until the channel closes (false) or Close is
// called (true).
func (c *Connection) drain(deliveries <-chan amqp.Delivery, handler func(amqp.Delivery)) bool {
	for {
		select {
		case <-c.done:
			return true
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			handler(d)
		}
	}
}

// Close stops reconnecting and consuming, then closes the connection.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.logger.Info("rabbitmq_close", "Closing RabbitMQ connection")
		close(c.done)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pubChannel != nil {
			c.pubChannel.Close()
		}
		if c.conn != nil {
			c.conn.Close()
		}
		c.conn, c.pubChannel = nil, nil
	})
}
