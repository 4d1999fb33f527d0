package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// connectAttempts bounds how often a startup ping is retried
const connectAttempts = 5

// pingWithRetry retries ping with exponential backoff so services can
// start alongside their dependencies
func pingWithRetry(ctx context.Context, ping func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	policy := backoff.WithContext(backoff.WithMaxRetries(b, connectAttempts-1), ctx)
	return backoff.Retry(func() error { return ping(ctx) }, policy)
}
