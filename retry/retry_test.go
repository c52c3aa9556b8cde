package retry

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/client"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/config"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/ratelimit"
)

// stubUploader scripts a sequence of responses for the retrier.
type stubUploader struct {
	calls     int
	responses []stubResponse
}

type stubResponse struct {
	status     int
	retryAfter string
	err        error
}

func (s *stubUploader) Upload(ctx context.Context, filename string, data []byte) (*client.Response, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++

	scripted := s.responses[idx]
	if scripted.status == 0 {
		return nil, scripted.err
	}

	headers := http.Header{}
	if scripted.retryAfter != "" {
		headers.Set("Retry-After", scripted.retryAfter)
	}

	resp := &client.Response{StatusCode: scripted.status, Headers: headers, Body: []byte("body")}
	var err error
	if scripted.status >= 300 {
		err = fmt.Errorf("remote endpoint returned HTTP %d", scripted.status)
	}
	return resp, err
}

func fastRetryConfig(maxRetries int) config.RetryConfig {
	return config.RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: config.Duration(time.Millisecond),
		MaxDelay:     config.Duration(5 * time.Millisecond),
		Multiplier:   2.0,
	}
}

// TestUploadSucceedsFirstTry verifies a 2xx response returns without
// extra attempts.
func TestUploadSucceedsFirstTry(t *testing.T) {
	stub := &stubUploader{responses: []stubResponse{{status: http.StatusOK}}}
	r := New(stub, ratelimit.New(config.RateLimitConfig{}), fastRetryConfig(3))

	resp, err := r.Upload(context.Background(), "report.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, stub.calls)
}

// TestUploadRetriesTransientFailures verifies 5xx responses and
// transport errors are retried until a success.
func TestUploadRetriesTransientFailures(t *testing.T) {
	stub := &stubUploader{responses: []stubResponse{
		{status: http.StatusServiceUnavailable},
		{err: fmt.Errorf("connection reset")},
		{status: http.StatusOK},
	}}
	r := New(stub, ratelimit.New(config.RateLimitConfig{}), fastRetryConfig(3))

	resp, err := r.Upload(context.Background(), "report.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, stub.calls)
}

// TestUploadNonRetryableStatus verifies a 400 returns immediately with
// the response intact.
func TestUploadNonRetryableStatus(t *testing.T) {
	stub := &stubUploader{responses: []stubResponse{{status: http.StatusBadRequest}}}
	r := New(stub, ratelimit.New(config.RateLimitConfig{}), fastRetryConfig(3))

	resp, err := r.Upload(context.Background(), "report.pdf", []byte("x"))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, stub.calls)
}

// TestUploadExhaustsRetries verifies the attempt count and final error
// when the endpoint never recovers.
func TestUploadExhaustsRetries(t *testing.T) {
	stub := &stubUploader{responses: []stubResponse{{status: http.StatusBadGateway}}}
	r := New(stub, ratelimit.New(config.RateLimitConfig{}), fastRetryConfig(2))

	resp, err := r.Upload(context.Background(), "report.pdf", []byte("x"))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, stub.calls)
}

// TestUploadContextCancelled verifies cancellation stops the retry
// loop between attempts.
func TestUploadContextCancelled(t *testing.T) {
	stub := &stubUploader{responses: []stubResponse{{status: http.StatusBadGateway}}}
	cfg := config.RetryConfig{
		MaxRetries:   5,
		InitialDelay: config.Duration(time.Second),
		MaxDelay:     config.Duration(time.Second),
		Multiplier:   1.0,
	}
	r := New(stub, ratelimit.New(config.RateLimitConfig{}), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Upload(ctx, "report.pdf", []byte("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, stub.calls)
}

// TestUploadHonorsRetryAfter verifies a 429 with a Retry-After header
// holds the next attempt back when respect_retry_after is on.
func TestUploadHonorsRetryAfter(t *testing.T) {
	stub := &stubUploader{responses: []stubResponse{
		{status: http.StatusTooManyRequests, retryAfter: "1"},
		{status: http.StatusOK},
	}}
	limiter := ratelimit.New(config.RateLimitConfig{
		MaxConcurrent:     1,
		RespectRetryAfter: true,
	})
	r := New(stub, limiter, fastRetryConfig(3))

	// The hold is a full second while backoff is milliseconds, so the
	// second attempt cannot start before the deadline fires.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Upload(ctx, "report.pdf", []byte("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, stub.calls)
}

// TestUploadIgnoresRetryAfterWhenDisabled verifies the header is a
// no-op without respect_retry_after.
func TestUploadIgnoresRetryAfterWhenDisabled(t *testing.T) {
	stub := &stubUploader{responses: []stubResponse{
		{status: http.StatusTooManyRequests, retryAfter: "1"},
		{status: http.StatusOK},
	}}
	r := New(stub, ratelimit.New(config.RateLimitConfig{}), fastRetryConfig(3))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp, err := r.Upload(ctx, "report.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, stub.calls)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := config.RetryConfig{
		InitialDelay: config.Duration(100 * time.Millisecond),
		MaxDelay:     config.Duration(300 * time.Millisecond),
		Multiplier:   2.0,
	}
	r := New(nil, ratelimit.New(config.RateLimitConfig{}), cfg)

	// Jitter is +/- 25%, so bound each attempt rather than pin it.
	first := r.calculateBackoff(0)
	assert.GreaterOrEqual(t, first, 75*time.Millisecond)
	assert.LessOrEqual(t, first, 125*time.Millisecond)

	second := r.calculateBackoff(1)
	assert.GreaterOrEqual(t, second, 150*time.Millisecond)
	assert.LessOrEqual(t, second, 250*time.Millisecond)

	// Capped at max_delay before jitter.
	capped := r.calculateBackoff(10)
	assert.LessOrEqual(t, capped, 375*time.Millisecond)
}

func TestAddJitterZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), addJitter(0))
}
