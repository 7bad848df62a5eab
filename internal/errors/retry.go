package errors

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries   int           // Maximum number of retries (0 = no retries)
	InitialDelay time.Duration // Initial delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Delay multiplier for exponential backoff
	Jitter       float64       // Random jitter factor (0-1)
}

// DefaultRetryConfig returns sensible defaults with retries disabled.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   0,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Retrier implements retry logic with exponential backoff.
type Retrier struct {
	config RetryConfig
	rng    *rand.Rand
}

// NewRetrier creates a new retrier.
func NewRetrier(config RetryConfig) *Retrier {
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Retrier{
		config: config,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RetryFunc is a function that can be retried.
type RetryFunc func(ctx context.Context) error

// RetryResult holds the result of a retry operation.
type RetryResult struct {
	Attempts  int
	LastError error
	Duration  time.Duration
	Success   bool
}

// Do executes fn, retrying retryable failures until MaxRetries is exhausted
// or ctx is done.
func (r *Retrier) Do(ctx context.Context, operation string, url string, fn RetryFunc) *RetryResult {
	result := &RetryResult{}
	start := time.Now()
	delay := r.config.InitialDelay

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts++

		err := fn(ctx)
		if err == nil {
			result.Success = true
			result.Duration = time.Since(start)
			return result
		}
		result.LastError = err

		if ctx.Err() != nil {
			result.LastError = NewCancelledError(url, operation)
			break
		}
		if attempt >= r.config.MaxRetries || !IsRetryable(err) {
			break
		}

		timer := time.NewTimer(r.calculateDelay(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = NewCancelledError(url, operation)
			result.Duration = time.Since(start)
			return result
		case <-timer.C:
		}

		delay = r.nextDelay(delay)
	}

	result.Duration = time.Since(start)
	return result
}

// calculateDelay applies jitter to the base delay.
func (r *Retrier) calculateDelay(baseDelay time.Duration) time.Duration {
	if r.config.Jitter <= 0 {
		return baseDelay
	}

	jitter := r.config.Jitter * float64(baseDelay)
	randomJitter := (r.rng.Float64() * 2 * jitter) - jitter

	return time.Duration(float64(baseDelay) + randomJitter)
}

// nextDelay calculates the next delay using exponential backoff.
func (r *Retrier) nextDelay(currentDelay time.Duration) time.Duration {
	next := time.Duration(float64(currentDelay) * r.config.Multiplier)
	if r.config.MaxDelay > 0 && next > r.config.MaxDelay {
		return r.config.MaxDelay
	}
	return next
}
