// Package queue is a durable job queue on Redis lists.
//
// Jobs move from <name>:pending to a per-worker <name>:processing:<id>
// list while a handler runs. Failed jobs wait in the <name>:delayed sorted
// set (scored by due time in unix milliseconds) until the scheduler moves
// them back to pending; jobs that fail permanently or exhaust their
// attempts end up in <name>:dead. Delivery is at-least-once.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maneesh/filesmanager/internal/common"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filesmanager-queue")

// State is the lifecycle of a job
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Envelope wraps a payload with delivery bookkeeping
type Envelope struct {
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	LastError  string          `json:"lastError,omitempty"`
}

// Queue is a named Redis queue
type Queue struct {
	client *redis.Client
	name   string
	now    func() time.Time
}

// New returns the queue called name
func New(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name, now: time.Now}
}

func (q *Queue) pendingKey() string { return q.name + ":pending" }
func (q *Queue) delayedKey() string { return q.name + ":delayed" }
func (q *Queue) deadKey() string    { return q.name + ":dead" }

func (q *Queue) processingKey(workerID string) string {
	return q.name + ":processing:" + workerID
}

// Enqueue marshals payload and appends it to the pending list
func (q *Queue) Enqueue(ctx context.Context, payload any) error {
	ctx, span := tracer.Start(ctx, "queue.enqueue",
		trace.WithAttributes(attribute.String("queue", q.name)),
	)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	env := Envelope{
		ID:         uuid.New().String(),
		Payload:    body,
		EnqueuedAt: q.now().UTC(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := q.client.LPush(ctx, q.pendingKey(), raw).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: enqueue: %w", common.ErrStoreUnavailable, err)
	}

	span.SetAttributes(attribute.String("job_id", env.ID))
	return nil
}

// Stats is a snapshot of queue depths
type Stats struct {
	Pending int64 `json:"pending"`
	Delayed int64 `json:"delayed"`
	Dead    int64 `json:"dead"`
}

// Stats reports the depth of the pending, delayed and dead collections
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var pending, delayed, dead *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pending = pipe.LLen(ctx, q.pendingKey())
		delayed = pipe.ZCard(ctx, q.delayedKey())
		dead = pipe.LLen(ctx, q.deadKey())
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("%w: queue stats: %w", common.ErrStoreUnavailable, err)
	}
	return Stats{Pending: pending.Val(), Delayed: delayed.Val(), Dead: dead.Val()}, nil
}

// promoteScript moves due members of the delayed set to pending in one
// atomic step, so concurrent schedulers never double-deliver a retry
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, member in ipairs(due) do
	redis.call('ZREM', KEYS[1], member)
	redis.call('LPUSH', KEYS[2], member)
end
return #due
`)

const promoteBatch = 100

// PromoteDue moves retries whose delay has elapsed back to pending
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "queue.promote_due")
	defer span.End()

	now := q.now().UnixMilli()
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.pendingKey()},
		now, promoteBatch,
	).Int()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: promote: %w", common.ErrStoreUnavailable, err)
	}

	span.SetAttributes(attribute.Int("promoted", n))
	return n, nil
}
