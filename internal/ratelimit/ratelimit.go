package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/amishk599/jobsync/internal/model"
	"golang.org/x/time/rate"
)

// HostLimiter enforces a minimum spacing between requests to the same key,
// usually a hostname. Different keys never block each other.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
}

// NewHostLimiter creates a limiter allowing one request per minDelay per key.
// A zero minDelay disables limiting.
func NewHostLimiter(minDelay time.Duration) *HostLimiter {
	every := rate.Inf
	if minDelay > 0 {
		every = rate.Every(minDelay)
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
	}
}

func (h *HostLimiter) limiterFor(key string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if lim, ok := h.limiters[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(h.every, 1)
	h.limiters[key] = lim
	return lim
}

// Wait blocks until a request for key may proceed.
func (h *HostLimiter) Wait(ctx context.Context, key string) error {
	if err := h.limiterFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", key, err)
	}
	return nil
}

// WaitURL waits on the host of raw. Unparsable URLs share one bucket.
func (h *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return h.Wait(ctx, "_")
	}
	return h.Wait(ctx, u.Host)
}

// Fetcher is a decorator that waits on the limiter before delegating to the
// wrapped ListingFetcher. Fetchers that hit the same API should share one
// limiter and key.
type Fetcher struct {
	inner   model.ListingFetcher
	limiter *HostLimiter
	key     string
}

// NewFetcher wraps inner with rate limiting under key.
func NewFetcher(inner model.ListingFetcher, limiter *HostLimiter, key string) *Fetcher {
	return &Fetcher{inner: inner, limiter: limiter, key: key}
}

func (f *Fetcher) FetchListings(ctx context.Context, q model.Query) ([]model.JobRecord, error) {
	if err := f.limiter.Wait(ctx, f.key); err != nil {
		return nil, err
	}
	return f.inner.FetchListings(ctx, q)
}

// Name forwards the wrapped fetcher's name when it has one.
func (f *Fetcher) Name() string {
	if n, ok := f.inner.(interface{ Name() string }); ok {
		return n.Name()
	}
	return f.key
}
