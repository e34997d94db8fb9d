package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"time"
)

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy. Zero values fall back to three
// attempts starting at 250ms and capped at 5s.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// MaxAttempts returns the total number of attempts allowed per request.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether a failed attempt (1-based) may be repeated.
// Fatal fetch errors and context errors are never retried.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// RetryingFetcher wraps a Fetcher with a RetryPolicy. Once the policy gives
// up on a transient error it is escalated to fatal for that request only.
type RetryingFetcher struct {
	next   Fetcher
	policy RetryPolicy
}

// NewRetryingFetcher decorates next.
func NewRetryingFetcher(next Fetcher, policy RetryPolicy) *RetryingFetcher {
	return &RetryingFetcher{next: next, policy: policy}
}

// Fetch retries next.Fetch until it succeeds or the policy stops it.
func (f *RetryingFetcher) Fetch(ctx context.Context, request Request) (Document, error) {
	for attempt := 1; ; attempt++ {
		doc, err := f.next.Fetch(ctx, request)
		if err == nil {
			return doc, nil
		}
		if !f.policy.ShouldRetry(err, attempt) {
			return Document{}, escalate(request, err, attempt)
		}
		timer := time.NewTimer(f.policy.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return Document{}, fmt.Errorf("retry %s: %w", request.URL, ctx.Err())
		case <-timer.C:
		}
	}
}

func escalate(request Request, err error, attempts int) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Escalate(attempts)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &FetchError{Request: request, Attempts: attempts, Err: err}
}
