// Package ratelimit paces requests made by the crawler.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces successive requests at least delay apart, measured from the
// start of one request to the start of the next. Time spent fetching counts
// toward the delay, so slow pages shorten the following wait.
type Pacer struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	delay   time.Duration
	waits   int
	waited  time.Duration
}

// NewPacer creates a pacer. A delay of zero or less disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{
		limiter: rate.NewLimiter(limitFor(delay), 1),
		delay:   delay,
	}
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

// Wait blocks until the next request may start or ctx is done. The first
// call never blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	err := p.limiter.Wait(ctx)

	p.mu.Lock()
	p.waits++
	p.waited += time.Since(start)
	p.mu.Unlock()

	return err
}

// Delay returns the configured spacing.
func (p *Pacer) Delay() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.delay
}

// Stats returns pacer statistics.
func (p *Pacer) Stats() PacerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PacerStats{
		Delay:  p.delay,
		Waits:  p.waits,
		Waited: p.waited,
	}
}

// PacerStats contains pacer statistics.
type PacerStats struct {
	Delay  time.Duration `json:"delay"`
	Waits  int           `json:"waits"`
	Waited time.Duration `json:"waited"`
}
