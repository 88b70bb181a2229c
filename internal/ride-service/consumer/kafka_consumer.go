package consumer

import (
	"context"
	"errors"
	"io"
	"time"

	"ride-share/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const (
	fetchRetryDelay    = 500 * time.Millisecond
	maxFetchRetryDelay = 30 * time.Second
)

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads the ride event topic as part of a consumer group.
type KafkaConsumer struct {
	reader     messageReader
	topic      string
	dispatcher *Dispatcher
	log        logger.Logger
	retryDelay time.Duration
}

func NewKafkaConsumer(brokers []string, topic, groupID string, dispatcher *Dispatcher, log logger.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaConsumer(reader, topic, dispatcher, log)
}

func newKafkaConsumer(reader messageReader, topic string, dispatcher *Dispatcher, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		topic:      topic,
		dispatcher: dispatcher,
		log:        log,
		retryDelay: fetchRetryDelay,
	}
}

// Run blocks until ctx is cancelled or the reader is closed. Offsets are
// committed after each message is dispatched, malformed ones included.
// Fetch errors back off exponentially up to maxFetchRetryDelay.
func (c *KafkaConsumer) Run(ctx context.Context) {
	log := c.log.WithFields(logger.LogFields{"topic": c.topic})
	log.Info("consumer_running", "Kafka notification consumer started")

	delay := c.retryDelay
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("consumer_shutdown", "Kafka consumer stopping")
				return
			}
			if errors.Is(err, io.EOF) {
				log.Info("consumer_closed", "Kafka reader closed")
				return
			}
			log.WithFields(logger.LogFields{"retry_in": delay.String()}).Error("kafka_fetch_failed", err)
			select {
			case <-ctx.Done():
				log.Info("consumer_shutdown", "Kafka consumer stopping")
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxFetchRetryDelay {
				delay = maxFetchRetryDelay
			}
			continue
		}
		delay = c.retryDelay

		if err := c.dispatcher.Dispatch(msg.Value); err != nil {
			log.WithFields(logger.LogFields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Error("notification_decode_failed", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("kafka_commit_failed", err)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
