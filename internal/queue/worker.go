package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docsend/internal/config"
)

const (
	// DefaultConsumers is the number of consumer goroutines.
	DefaultConsumers = 4

	// DefaultBlockTimeout is how long a consumer blocks waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second

	// DefaultMaxReceives is the receive budget before a message is dead-lettered.
	DefaultMaxReceives = 5

	// claimBatch is the max pending messages reclaimed per sweep.
	claimBatch = 100
)

// Processor handles one delivery job. Implementations must be safe for
// concurrent use: all worker goroutines share a single Processor, the same
// way DI-managed services are shared across queue jobs.
type Processor interface {
	Process(ctx context.Context, deliveryID string) error

	// Abandon records a terminal failure for a delivery whose job is being
	// dead-lettered, so the row does not stay queued with no job behind it.
	Abandon(ctx context.Context, deliveryID, reason string) error
}

// Worker consumes delivery jobs from the Redis stream and hands them to the
// shared Processor. Messages are acked only after processing; unacked
// messages are reclaimed after ClaimIdle, and messages that exceed the
// receive budget go to the dead-letter stream.
type Worker struct {
	redis        *redis.Client
	proc         Processor
	logger       *slog.Logger
	consumers    int
	blockTimeout time.Duration
	claimIdle    time.Duration
	maxReceives  int64
}

// NewWorker creates a new delivery job worker. Zero config values fall back
// to package defaults.
func NewWorker(client *redis.Client, proc Processor, logger *slog.Logger, cfg config.WorkerConfig) *Worker {
	w := &Worker{
		redis:        client,
		proc:         proc,
		logger:       logger.With("component", "queue.worker"),
		consumers:    cfg.Consumers,
		blockTimeout: cfg.BlockTimeout,
		claimIdle:    cfg.ClaimIdle,
		maxReceives:  cfg.MaxReceives,
	}
	if w.consumers <= 0 {
		w.consumers = DefaultConsumers
	}
	if w.blockTimeout <= 0 {
		w.blockTimeout = DefaultBlockTimeout
	}
	if w.claimIdle <= 0 {
		w.claimIdle = DefaultClaimIdle
	}
	if w.maxReceives <= 0 {
		w.maxReceives = DefaultMaxReceives
	}
	return w
}

// Run starts the consumer pool and the reclaim loop. It blocks until the
// context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ensureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < w.consumers; i++ {
		consumer := fmt.Sprintf("consumer-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx, consumer)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reclaimLoop(ctx)
	}()

	w.logger.Info("delivery worker started", "consumers", w.consumers)
	wg.Wait()
	w.logger.Info("delivery worker stopped")
	return ctx.Err()
}

// ensureGroup creates the consumer group, tolerating an existing one.
func (w *Worker) ensureGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// consume reads new messages for one consumer name until ctx is cancelled.
func (w *Worker) consume(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    ConsumerGroup,
			Consumer: consumer,
			Streams:  []string{StreamKey, ">"},
			Count:    1,
			Block:    w.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("xreadgroup failed", "consumer", consumer, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				w.handle(ctx, msg, 1)
			}
		}
	}
}

// handle processes a single message. receives counts deliveries of this
// message including the current one.
func (w *Worker) handle(ctx context.Context, msg redis.XMessage, receives int64) {
	deliveryID, ok := msg.Values[deliveryIDField].(string)
	if !ok || deliveryID == "" {
		w.deadLetter(ctx, msg, "missing delivery_id")
		return
	}

	if err := w.proc.Process(ctx, deliveryID); err != nil {
		if ctx.Err() != nil {
			// shutdown mid-job: leave the message pending for reclaim
			return
		}
		if receives >= w.maxReceives {
			// flip the row to failed before the job disappears into the DLQ;
			// if that write fails too, leave the message pending so the next
			// reclaim retries both
			if aerr := w.proc.Abandon(ctx, deliveryID, err.Error()); aerr != nil {
				w.logger.Error("abandon failed, leaving pending",
					"delivery_id", deliveryID,
					"stream_id", msg.ID,
					"error", aerr,
				)
				return
			}
			w.deadLetter(ctx, msg, err.Error())
			return
		}
		w.logger.Warn("job failed, leaving pending for reclaim",
			"delivery_id", deliveryID,
			"stream_id", msg.ID,
			"receives", receives,
			"error", err,
		)
		return
	}

	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, msg.ID).Err(); err != nil {
		w.logger.Error("xack failed", "stream_id", msg.ID, "error", err)
	}
}

// reclaimLoop periodically claims messages that sat pending longer than
// claimIdle (consumer crashed or handler error) and retries them.
func (w *Worker) reclaimLoop(ctx context.Context) {
	interval := w.claimIdle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reclaimOnce(ctx)
		}
	}
}

func (w *Worker) reclaimOnce(ctx context.Context) {
	pending, err := w.redis.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: StreamKey,
		Group:  ConsumerGroup,
		Idle:   w.claimIdle,
		Start:  "-",
		End:    "+",
		Count:  claimBatch,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error("xpending failed", "error", err)
		}
		return
	}

	for _, p := range pending {
		msgs, err := w.redis.XClaim(ctx, &redis.XClaimArgs{
			Stream:   StreamKey,
			Group:    ConsumerGroup,
			Consumer: "reclaimer",
			MinIdle:  w.claimIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				w.logger.Error("xclaim failed", "stream_id", p.ID, "error", err)
			}
			continue
		}
		for _, msg := range msgs {
			// RetryCount counts prior deliveries; claiming makes one more
			w.handle(ctx, msg, p.RetryCount+1)
		}
	}
}

// deadLetter copies a poison message to the dead-letter stream and acks it.
func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string) {
	values := map[string]interface{}{"reason": reason, "stream_id": msg.ID}
	for k, v := range msg.Values {
		values[k] = v
	}

	if err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		ID:     "*",
		Values: values,
	}).Err(); err != nil {
		w.logger.Error("dead-letter xadd failed", "stream_id", msg.ID, "error", err)
		return
	}

	w.logger.Warn("message dead-lettered", "stream_id", msg.ID, "reason", reason)

	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, msg.ID).Err(); err != nil {
		w.logger.Error("xack failed", "stream_id", msg.ID, "error", err)
	}
}
