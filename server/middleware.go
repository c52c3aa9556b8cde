package server

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	httprateredis "github.com/go-chi/httprate-redis"
	"github.com/redis/go-redis/v9"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/logger"
)

// Logger returns a middleware that logs HTTP requests using the provided logger.
// It logs request method, path, status code, duration, and includes request ID if available.
func Logger(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqID := chimiddleware.GetReqID(r.Context())

			reqLog := log.With(
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			reqLog.Info("request started")

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			reqLog.Info("request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
			)
		})
	}
}

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	RequestLimit   int
	WindowDuration time.Duration
	RedisClient    *redis.Client // optional, enables distributed counting
}

// DefaultRateLimitConfig returns a default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestLimit:   100,
		WindowDuration: time.Minute,
	}
}

// RateLimit returns a rate limiter middleware that rate limits requests per IP address.
func RateLimit(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.RequestLimit == 0 {
		config = DefaultRateLimitConfig()
	}

	limitHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded","status_code":429}`))
	}

	options := []httprate.Option{
		httprate.WithLimitHandler(limitHandler),
		httprate.WithKeyByRealIP(),
	}

	if config.RedisClient != nil {
		options = append(options, httprateredis.WithRedisLimitCounter(&httprateredis.Config{
			Client:    config.RedisClient,
			PrefixKey: "gspdf:ratelimit",
		}))
	}

	return httprate.NewRateLimiter(config.RequestLimit, config.WindowDuration, options...).Handler
}
