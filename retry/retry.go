// Package retry wraps the upload client with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/client"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/config"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/ratelimit"
)

// jitterPercent is the percentage of jitter added to retry delays (+/- 25%).
const jitterPercent = 0.25

// Uploader is the subset of the upload client the retrier drives.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (*client.Response, error)
}

// Retrier wraps an uploader with retry logic and exponential backoff.
type Retrier struct {
	uploader Uploader
	limiter  *ratelimit.Limiter
	config   config.RetryConfig
}

// New creates a Retrier with the given uploader, rate limiter, and
// retry configuration.
func New(u Uploader, l *ratelimit.Limiter, cfg config.RetryConfig) *Retrier {
	return &Retrier{
		uploader: u,
		limiter:  l,
		config:   cfg,
	}
}

// Upload attempts the upload with automatic retries on retryable
// status codes and transport errors.
func (r *Retrier) Upload(ctx context.Context, filename string, data []byte) (*client.Response, error) {
	maxRetries := r.config.GetMaxRetries()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}

		resp, err := r.uploader.Upload(ctx, filename, data)

		if resp != nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				r.limiter.Release()
				return resp, nil
			}

			if !r.config.ShouldRetry(resp.StatusCode) {
				r.limiter.Release()
				if err == nil {
					err = fmt.Errorf("remote endpoint returned HTTP %d", resp.StatusCode)
				}
				return resp, err
			}

			r.limiter.UpdateRetryAfter(resp.Headers)
			lastErr = fmt.Errorf("attempt %d: HTTP %d", attempt, resp.StatusCode)
		} else {
			lastErr = fmt.Errorf("attempt %d failed: %w", attempt, err)
		}

		r.limiter.Release()

		if attempt < maxRetries {
			backoff := r.calculateBackoff(attempt)
			if sleepErr := r.sleep(ctx, backoff); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}

// calculateBackoff computes the backoff duration for a given attempt
// using exponential backoff.
func (r *Retrier) calculateBackoff(attempt int) time.Duration {
	initialDelay := r.config.GetInitialDelay()
	maxDelay := r.config.GetMaxDelay()
	multiplier := r.config.GetMultiplier()

	delay := float64(initialDelay) * math.Pow(multiplier, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	return addJitter(time.Duration(delay))
}

// addJitter adds random jitter to prevent thundering herd.
func addJitter(duration time.Duration) time.Duration {
	if duration == 0 {
		return 0
	}

	jitterRange := float64(duration) * jitterPercent
	jitter := (rand.Float64()*2.0 - 1.0) * jitterRange

	result := float64(duration) + jitter
	if result < 0 {
		return 0
	}

	return time.Duration(result)
}

// sleep waits for the duration or until the context is cancelled.
func (r *Retrier) sleep(ctx context.Context, duration time.Duration) error {
	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
