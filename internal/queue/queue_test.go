package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsend/internal/config"
)

// setupTestRedis creates a miniredis instance for testing.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingProcessor collects processed and abandoned delivery IDs and
// signals each Process call.
type recordingProcessor struct {
	mu         sync.Mutex
	ids        []string
	abandoned  []string
	err        error
	abandonErr error
	called     chan string
}

func newRecordingProcessor(err error) *recordingProcessor {
	return &recordingProcessor{err: err, called: make(chan string, 64)}
}

func (p *recordingProcessor) Process(_ context.Context, deliveryID string) error {
	p.mu.Lock()
	p.ids = append(p.ids, deliveryID)
	p.mu.Unlock()
	p.called <- deliveryID
	return p.err
}

func (p *recordingProcessor) Abandon(_ context.Context, deliveryID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.abandonErr != nil {
		return p.abandonErr
	}
	p.abandoned = append(p.abandoned, deliveryID)
	return nil
}

func (p *recordingProcessor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.ids...)
}

func (p *recordingProcessor) seenAbandoned() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.abandoned...)
}

func TestPublisherPublish(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	pub := NewPublisher(client, testLogger())

	id, err := pub.Publish(ctx, "del-123")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, StreamKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "del-123", msgs[0].Values["delivery_id"])
}

func TestWorkerProcessesAndAcks(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := newRecordingProcessor(nil)
	w := NewWorker(client, proc, testLogger(), config.WorkerConfig{
		Consumers:    2,
		BlockTimeout: 50 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	pub := NewPublisher(client, testLogger())
	_, err := pub.Publish(context.Background(), "del-1")
	require.NoError(t, err)

	select {
	case id := <-proc.called:
		assert.Equal(t, "del-1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("processor was never invoked")
	}

	// ack should follow processing
	assert.Eventually(t, func() bool {
		p, err := client.XPending(context.Background(), StreamKey, ConsumerGroup).Result()
		return err == nil && p.Count == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerLeavesFailedJobPending(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := newRecordingProcessor(errors.New("endpoint down"))
	w := NewWorker(client, proc, testLogger(), config.WorkerConfig{
		Consumers:    1,
		BlockTimeout: 50 * time.Millisecond,
		ClaimIdle:    time.Hour, // keep the reclaim loop out of this test
	})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	pub := NewPublisher(client, testLogger())
	_, err := pub.Publish(context.Background(), "del-1")
	require.NoError(t, err)

	select {
	case <-proc.called:
	case <-time.After(5 * time.Second):
		t.Fatal("processor was never invoked")
	}

	assert.Eventually(t, func() bool {
		p, err := client.XPending(context.Background(), StreamKey, ConsumerGroup).Result()
		return err == nil && p.Count == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerDeadLettersMalformedMessage(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := newRecordingProcessor(nil)
	w := NewWorker(client, proc, testLogger(), config.WorkerConfig{
		Consumers:    1,
		BlockTimeout: 50 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// message without a delivery_id field
	err := client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: StreamKey,
		ID:     "*",
		Values: map[string]interface{}{"garbage": "x"},
	}).Err()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		n, err := client.XLen(context.Background(), DeadLetterStreamKey).Result()
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Empty(t, proc.seen())

	cancel()
	<-done
}

func TestWorkerDeadLettersAfterReceiveBudget(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	proc := newRecordingProcessor(errors.New("still failing"))
	w := NewWorker(client, proc, testLogger(), config.WorkerConfig{MaxReceives: 3})
	require.NoError(t, w.ensureGroup(ctx))

	msg := redis.XMessage{
		ID:     "1-1",
		Values: map[string]interface{}{"delivery_id": "del-9"},
	}

	// receives below budget: stays out of the DLQ
	w.handle(ctx, msg, 2)
	n, err := client.XLen(ctx, DeadLetterStreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// receive budget reached: abandoned, then dead-lettered
	w.handle(ctx, msg, 3)
	n, err = client.XLen(ctx, DeadLetterStreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	msgs, err := client.XRange(ctx, DeadLetterStreamKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "del-9", msgs[0].Values["delivery_id"])
	assert.Equal(t, "still failing", msgs[0].Values["reason"])

	// the delivery row was flipped to failed before the job vanished
	assert.Equal(t, []string{"del-9"}, proc.seenAbandoned())
}

func TestWorkerKeepsJobWhenAbandonFails(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	proc := newRecordingProcessor(errors.New("still failing"))
	proc.abandonErr = errors.New("db down")
	w := NewWorker(client, proc, testLogger(), config.WorkerConfig{MaxReceives: 3})
	require.NoError(t, w.ensureGroup(ctx))

	msg := redis.XMessage{
		ID:     "1-1",
		Values: map[string]interface{}{"delivery_id": "del-9"},
	}

	// if the failed-status write does not land, the message must stay out of
	// the DLQ so the next reclaim retries both
	w.handle(ctx, msg, 3)

	n, err := client.XLen(ctx, DeadLetterStreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Empty(t, proc.seenAbandoned())
}
