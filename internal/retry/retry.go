package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobsync/internal/ai"
	"github.com/amishk599/jobsync/internal/model"
)

// Policy says how often and how patiently to retry transient failures.
type Policy struct {
	MaxRetries int           // additional attempts after the first failure
	BaseDelay  time.Duration // delay before the first retry, doubled each time
	Logger     *slog.Logger
}

// Do runs fn, retrying transient errors with exponential backoff and jitter.
// A Retry-After hint from an HTTP 429 replaces the computed delay.
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || !isRetryable(err) {
		return v, err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		p.Logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		v, err = fn(ctx)
		if err == nil || !isRetryable(err) {
			return v, err
		}
		lastErr = err
	}

	var zero T
	return zero, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Never retry a cancelled context.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// A malformed classification answer is a verdict, not an outage.
	var bve *model.BatchValidationError
	if errors.As(err, &bve) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Network-level errors are retryable.
	return true
}

// Fetcher retries a ListingFetcher.
type Fetcher struct {
	inner  model.ListingFetcher
	policy Policy
}

// NewFetcher wraps inner with retry logic.
func NewFetcher(inner model.ListingFetcher, policy Policy) *Fetcher {
	return &Fetcher{inner: inner, policy: policy}
}

// FetchListings attempts the fetch, retrying on transient errors.
func (f *Fetcher) FetchListings(ctx context.Context, q model.Query) ([]model.JobRecord, error) {
	return Do(ctx, f.policy, "fetch", func(ctx context.Context) ([]model.JobRecord, error) {
		return f.inner.FetchListings(ctx, q)
	})
}

// Name forwards the wrapped fetcher's name when it has one.
func (f *Fetcher) Name() string {
	if n, ok := f.inner.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "fetcher"
}

// Provider retries an LLM provider.
type Provider struct {
	inner  ai.LLMProvider
	policy Policy
}

// NewProvider wraps inner with retry logic.
func NewProvider(inner ai.LLMProvider, policy Policy) *Provider {
	return &Provider{inner: inner, policy: policy}
}

// Complete sends the prompt, retrying 429/5xx and network failures.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	return Do(ctx, p.policy, "llm", func(ctx context.Context) (string, error) {
		return p.inner.Complete(ctx, prompt)
	})
}
