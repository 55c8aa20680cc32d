package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited rejects completions once the source's token bucket is drained.
// It never waits: a drained bucket is a per-attempt failure so the router can
// move to the next source immediately.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps next with an rps/burst token bucket.
func NewRateLimited(next Provider, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Complete(ctx context.Context, req Request) (Response, error) {
	if !r.limiter.Allow() {
		return Response{}, ErrRateLimited
	}
	return r.next.Complete(ctx, req)
}

// Retrying retries retryable failures against the same source with
// exponential backoff. The router itself never retries.
type Retrying struct {
	next        Provider
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
}

// NewRetrying wraps next. maxAttempts counts the first try; values below 1 mean 1.
func NewRetrying(next Provider, maxAttempts int, backoff time.Duration) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff == 0 {
		backoff = 500 * time.Millisecond
	}
	return &Retrying{next: next, maxAttempts: maxAttempts, backoff: backoff, maxBackoff: 10 * time.Second}
}

func (r *Retrying) Complete(ctx context.Context, req Request) (Response, error) {
	backoff := r.backoff
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		resp, err := r.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !Retryable(err) || attempt == r.maxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return Response{}, fmt.Errorf("%w: %w", lastErr, ctx.Err())
		}
		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
	return Response{}, lastErr
}
