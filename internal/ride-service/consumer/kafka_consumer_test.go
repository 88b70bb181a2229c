package consumer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ride-share/internal/ride-service/domain"
	"ride-share/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type fetchResult struct {
	msg kafka.Message
	err error
}

// scriptedReader replays results in order, then reports io.EOF.
type scriptedReader struct {
	mu        sync.Mutex
	script    []fetchResult
	fetches   int
	committed []int64
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if len(r.script) == 0 {
		return kafka.Message{}, io.EOF
	}
	next := r.script[0]
	r.script = r.script[1:]
	return next.msg, next.err
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func runConsumer(t *testing.T, ctx context.Context, c *KafkaConsumer) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestKafkaConsumerDispatchesAndCommits(t *testing.T) {
	n := newRecordingNotifier()
	reader := &scriptedReader{script: []fetchResult{
		{msg: kafka.Message{Offset: 7, Value: encode(t, domain.RideCancelledEvent{
			RideID: "r1", DriverID: "d1", PassengerIDs: []string{"p1"}, CancelledAt: time.Now(),
		})}},
		{msg: kafka.Message{Offset: 8, Value: []byte("not json")}},
	}}
	c := newKafkaConsumer(reader, "ride-events", NewDispatcher(n, logger.Discard()), logger.Discard())

	runConsumer(t, context.Background(), c)

	if len(n.sent["p1"]) != 1 {
		t.Errorf("p1 notifications = %v", n.sent["p1"])
	}
	if len(reader.committed) != 2 || reader.committed[0] != 7 || reader.committed[1] != 8 {
		t.Errorf("committed = %v, want [7 8]", reader.committed)
	}
}

func TestKafkaConsumerStopsWhenReaderClosed(t *testing.T) {
	reader := &scriptedReader{script: []fetchResult{
		{err: errors.New("broker unreachable")},
		{err: errors.New("broker unreachable")},
	}}
	c := newKafkaConsumer(reader, "ride-events", NewDispatcher(newRecordingNotifier(), logger.Discard()), logger.Discard())
	c.retryDelay = time.Millisecond

	runConsumer(t, context.Background(), c)

	if reader.fetches != 3 {
		t.Errorf("fetches = %d, want 2 failures then EOF", reader.fetches)
	}
}

func TestKafkaConsumerBacksOffUntilCancelled(t *testing.T) {
	reader := &scriptedReader{script: []fetchResult{{err: errors.New("broker unreachable")}}}
	c := newKafkaConsumer(reader, "ride-events", NewDispatcher(newRecordingNotifier(), logger.Discard()), logger.Discard())
	c.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	runConsumer(t, ctx, c)

	if reader.fetches != 1 {
		t.Errorf("fetches = %d, want no retry before the delay", reader.fetches)
	}
}
