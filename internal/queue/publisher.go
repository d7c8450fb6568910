// Package queue moves delivery jobs through a Redis stream so the API can
// accept dispatches without waiting on customer endpoints.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream for delivery jobs.
	StreamKey = "stream:delivery_jobs"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:delivery_jobs:dlq"

	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "delivery_workers"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for a Redis publish.
	PublishTimeout = 2 * time.Second
)

// deliveryIDField is the single field carried per job message. The job is a
// pointer into the deliveries table, not a payload: the worker re-reads the
// row so a stale message can never overwrite a newer outcome.
const deliveryIDField = "delivery_id"

// Publisher enqueues delivery jobs on the Redis stream.
type Publisher struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewPublisher creates a new delivery job publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		logger: logger.With("component", "queue.publisher"),
	}
}

// Publish adds a delivery job to the stream and returns the stream entry ID.
func (p *Publisher) Publish(ctx context.Context, deliveryID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",
		Values: map[string]interface{}{
			deliveryIDField: deliveryID,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	p.logger.Debug("delivery job published",
		"delivery_id", deliveryID,
		"stream_id", id,
	)
	return id, nil
}
