// Package cache stores finished artifacts keyed by input checksum and
// operation, so re-submitting the same PDF skips a Ghostscript run.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is one cached artifact.
type Entry struct {
	Key       string
	Operation string
	Filename  string
	Body      []byte
	StoredAt  time.Time
	TTL       time.Duration
}

// IsExpired returns true once the entry is past its TTL.
func (e *Entry) IsExpired() bool {
	return time.Since(e.StoredAt) >= e.TTL
}

// Cache is the artifact cache interface.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Key derives the cache key for an input and operation: the SHA-256 of
// the input bytes joined with the operation name.
func Key(input []byte, op string) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:]) + ":" + op
}

// Config holds cache configuration shared by implementations.
type Config struct {
	Prefix          string
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns a cache config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:          "gspdf:artifact:",
		TTL:             1 * time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

func applyDefaults(config Config) Config {
	defaults := DefaultConfig()

	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.TTL == 0 {
		config.TTL = defaults.TTL
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	return config
}
