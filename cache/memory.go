package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory artifact cache with background cleanup.
type MemoryCache struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	config  Config
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ Cache = (*MemoryCache)(nil)

// NewMemory creates a new in-memory cache with automatic cleanup.
func NewMemory(config Config) *MemoryCache {
	config = applyDefaults(config)

	mc := &MemoryCache{
		entries: make(map[string]*Entry),
		config:  config,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go mc.cleanup()

	return mc
}

// Get retrieves an entry. Returns nil if absent or expired.
func (mc *MemoryCache) Get(ctx context.Context, key string) (*Entry, error) {
	mc.mu.RLock()
	entry, exists := mc.entries[key]
	mc.mu.RUnlock()

	if !exists {
		return nil, nil
	}

	if entry.IsExpired() {
		mc.mu.Lock()
		delete(mc.entries, key)
		mc.mu.Unlock()
		return nil, nil
	}

	return entry, nil
}

// Set stores an entry, defensively copying the artifact bytes.
func (mc *MemoryCache) Set(ctx context.Context, entry *Entry) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	stored := *entry
	if stored.TTL == 0 {
		stored.TTL = mc.config.TTL
	}
	if stored.StoredAt.IsZero() {
		stored.StoredAt = time.Now()
	}
	stored.Body = make([]byte, len(entry.Body))
	copy(stored.Body, entry.Body)

	mc.entries[entry.Key] = &stored
	return nil
}

// Delete removes an entry.
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.entries, key)
	return nil
}

// Clear removes all entries.
func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*Entry)
	return nil
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	close(mc.stopCh)
	<-mc.doneCh
	return nil
}

// Len returns the number of cached entries, expired included.
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

func (mc *MemoryCache) cleanup() {
	defer close(mc.doneCh)

	ticker := time.NewTicker(mc.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stopCh:
			return
		case <-ticker.C:
			mc.removeExpired()
		}
	}
}

func (mc *MemoryCache) removeExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for key, entry := range mc.entries {
		if entry.IsExpired() {
			delete(mc.entries, key)
		}
	}
}
