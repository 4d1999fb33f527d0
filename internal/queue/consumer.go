package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/maneesh/filesmanager/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Handler processes one payload. Errors wrapping common.ErrPermanentJob
// are not retried.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Options tune a Consumer
type Options struct {
	WorkerID       string
	Concurrency    int
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	PollTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = time.Second
	}
	if o.BackoffMax < o.BackoffInitial {
		o.BackoffMax = o.BackoffInitial
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = time.Second
	}
	return o
}

// Consumer pulls jobs for one worker
type Consumer struct {
	q    *Queue
	opts Options
	log  logrus.FieldLogger
}

// NewConsumer creates a consumer; WorkerID names its processing list and
// must be stable across restarts for stale jobs to be recovered
func (q *Queue) NewConsumer(opts Options, log logrus.FieldLogger) *Consumer {
	opts = opts.withDefaults()
	return &Consumer{
		q:    q,
		opts: opts,
		log:  log.WithFields(logrus.Fields{"queue": q.name, "worker_id": opts.WorkerID}),
	}
}

// Run recovers stale jobs and then consumes with Concurrency goroutines
// until ctx is cancelled. An in-flight job is finished before Run returns.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	n, err := c.RequeueStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		c.log.WithField("count", n).Info("Requeued stale jobs")
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.opts.Concurrency; i++ {
		g.Go(func() error {
			return c.loop(ctx, h)
		})
	}
	return g.Wait()
}

// RequeueStale returns jobs left in this worker's processing list by a
// previous run to the pending list
func (c *Consumer) RequeueStale(ctx context.Context) (int, error) {
	processing := c.q.processingKey(c.opts.WorkerID)
	moved := 0
	for {
		err := c.q.client.LMove(ctx, processing, c.q.pendingKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("%w: requeue stale: %w", common.ErrStoreUnavailable, err)
		}
		moved++
	}
}

func (c *Consumer) loop(ctx context.Context, h Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.ProcessNext(ctx, h); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.WithError(err).Warn("Failed to fetch job")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.opts.PollTimeout):
			}
		}
	}
}

// ProcessNext waits up to PollTimeout for a job and handles it. It reports
// false when no job arrived.
func (c *Consumer) ProcessNext(ctx context.Context, h Handler) (bool, error) {
	processing := c.q.processingKey(c.opts.WorkerID)

	raw, err := c.q.client.BLMove(ctx, c.q.pendingKey(), processing, "RIGHT", "LEFT", c.opts.PollTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: dequeue: %w", common.ErrStoreUnavailable, err)
	}

	// the job is finished and acknowledged even if shutdown begins meanwhile
	c.handle(context.WithoutCancel(ctx), h, raw)
	return true, nil
}

func (c *Consumer) handle(ctx context.Context, h Handler, raw string) {
	processing := c.q.processingKey(c.opts.WorkerID)

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		c.log.WithError(err).Error("Dropping malformed envelope")
		c.bury(ctx, processing, raw, raw)
		return
	}

	ctx, span := tracer.Start(ctx, "queue.process",
		trace.WithAttributes(
			attribute.String("job_id", env.ID),
			attribute.Int("attempt", env.Attempts+1),
		),
	)
	defer span.End()

	log := c.log.WithFields(logrus.Fields{"job_id": env.ID, "attempt": env.Attempts + 1})
	log.WithField("state", StateProcessing).Debug("Processing job")

	herr := h(ctx, env.Payload)
	if herr == nil {
		if err := c.q.client.LRem(ctx, processing, 1, raw).Err(); err != nil {
			log.WithError(err).Error("Failed to acknowledge job")
			return
		}
		log.WithField("state", StateCompleted).Info("Job completed")
		return
	}

	span.RecordError(herr)
	env.Attempts++
	env.LastError = herr.Error()
	log = log.WithError(herr).WithField("state", StateFailed)

	updated, err := json.Marshal(env)
	if err != nil {
		log.WithError(err).Error("Failed to marshal envelope, moving original to dead list")
		c.bury(ctx, processing, raw, raw)
		return
	}

	if errors.Is(herr, common.ErrPermanentJob) || env.Attempts >= c.opts.MaxAttempts {
		c.bury(ctx, processing, raw, string(updated))
		log.Error("Job failed, moved to dead list")
		return
	}

	delay := c.retryDelay(env.Attempts)
	due := float64(c.q.now().Add(delay).UnixMilli())

	_, err = c.q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, c.q.delayedKey(), redis.Z{Score: due, Member: string(updated)})
		pipe.LRem(ctx, processing, 1, raw)
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to schedule retry")
		return
	}
	log.WithField("retry_in", delay).Warn("Job failed, retry scheduled")
}

// bury moves raw out of the processing list and stores entry in the dead list
func (c *Consumer) bury(ctx context.Context, processing, raw, entry string) {
	_, err := c.q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, c.q.deadKey(), entry)
		pipe.LRem(ctx, processing, 1, raw)
		return nil
	})
	if err != nil {
		c.log.WithError(err).Error("Failed to move job to dead list")
	}
}

// retryDelay is the exponential backoff for the given failed attempt count
func (c *Consumer) retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.BackoffInitial
	b.MaxInterval = c.opts.BackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}
