// Package ratelimit throttles outbound requests per target domain.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/catalogops/imageingest/internal/metrics"
)

// PerDomain hands out one token-bucket limiter per domain on first use. All
// domains share the same rate and burst; the zero domain string is legal and
// gets its own bucket.
type PerDomain struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New builds a PerDomain limiter. rps <= 0 disables throttling entirely.
func New(rps float64, burst int) *PerDomain {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &PerDomain{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until the domain's bucket grants a token or ctx is done.
func (p *PerDomain) Wait(ctx context.Context, domain string) error {
	limiter := p.limiter(domain)
	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	metrics.ObserveRateLimitDelay(domain, time.Since(start))
	return nil
}

func (p *PerDomain) limiter(domain string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[domain]; ok {
		return l
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.limiters[domain] = l
	return l
}
