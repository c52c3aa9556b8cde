// Package ratelimit bounds outbound requests to the remote upload
// endpoint.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/config"
)

// Limiter applies a token bucket, a concurrency cap, and Retry-After
// holds to uploads against a single endpoint.
type Limiter struct {
	cfg       config.RateLimitConfig
	limiter   *rate.Limiter
	semaphore chan struct{}

	mu         sync.RWMutex
	retryAfter time.Time
}

// New creates a limiter from the upload rate limit configuration.
func New(cfg config.RateLimitConfig) *Limiter {
	l := &Limiter{cfg: cfg}

	if cfg.RequestsPerSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.GetBurst())
	}
	if cfg.MaxConcurrent > 0 {
		l.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}

	return l
}

// Wait blocks until the limiter allows another upload. Callers must
// pair every successful Wait with a Release.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.cfg.IsEnabled() {
		return nil
	}

	if l.cfg.RespectRetryAfter {
		if err := l.waitRetryAfter(ctx); err != nil {
			return err
		}
	}

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	if l.semaphore != nil {
		select {
		case l.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Release frees the concurrency slot taken by Wait.
func (l *Limiter) Release() {
	if l.semaphore == nil {
		return
	}
	select {
	case <-l.semaphore:
	default:
	}
}

// UpdateRetryAfter records a Retry-After hold from a 429/503 response.
func (l *Limiter) UpdateRetryAfter(headers http.Header) {
	if !l.cfg.RespectRetryAfter {
		return
	}

	value := headers.Get("Retry-After")
	if value == "" {
		return
	}

	until, ok := parseRetryAfter(value)
	if !ok {
		return
	}

	l.mu.Lock()
	if until.After(l.retryAfter) {
		l.retryAfter = until
	}
	l.mu.Unlock()
}

func (l *Limiter) waitRetryAfter(ctx context.Context) error {
	l.mu.RLock()
	until := l.retryAfter
	l.mu.RUnlock()

	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) (time.Time, bool) {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return time.Time{}, false
		}
		return time.Now().Add(time.Duration(seconds) * time.Second), true
	}

	if t, err := http.ParseTime(value); err == nil {
		return t, true
	}

	return time.Time{}, false
}
