package consumer

import (
	"ride-share/pkg/logger"
	"ride-share/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConsumer feeds the notification queue into a Dispatcher.
type RabbitMQConsumer struct {
	rabbit     *rabbitmq.Connection
	dispatcher *Dispatcher
	log        logger.Logger
}

func NewRabbitMQConsumer(rabbit *rabbitmq.Connection, dispatcher *Dispatcher, log logger.Logger) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		rabbit:     rabbit,
		dispatcher: dispatcher,
		log:        log,
	}
}

// StartConsuming registers the queue handler; the connection runs and
// restarts the consumer loop on its own.
func (c *RabbitMQConsumer) StartConsuming() error {
	c.log.WithFields(logger.LogFields{
		"queue": rabbitmq.NotificationQueue,
	}).Info("consumer_starting", "Starting notification consumer")

	return c.rabbit.Consume(rabbitmq.NotificationQueue, c.handle)
}

func (c *RabbitMQConsumer) handle(msg amqp.Delivery) {
	if err := c.dispatcher.Dispatch(msg.Body); err != nil {
		c.log.WithFields(logger.LogFields{"routing_key": msg.RoutingKey}).Error("notification_decode_failed", err)
		// a body that cannot be decoded will never succeed
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}
