package cascade

import (
	"context"
	"sync"

	"github.com/hazardmap/powergrid/internal/model"
)

// CacheEntry is a previously verified location for a name. The JSON shape
// is the one the coordinate cache file has always used.
type CacheEntry struct {
	Lat          float64           `json:"lat"`
	Lon          float64           `json:"lon"`
	Source       model.MatchSource `json:"source"`
	Confidence   float64           `json:"confidence"`
	DisplayName  string            `json:"display_name,omitempty"`
	LastVerified string            `json:"last_verified,omitempty"`
}

// Cache stores verified locations keyed by light-normalized name. Get
// returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Put(ctx context.Context, key string, e CacheEntry) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewMemoryCache returns an empty cache, optionally seeded.
func NewMemoryCache(seed map[string]CacheEntry) *MemoryCache {
	m := &MemoryCache{entries: make(map[string]CacheEntry, len(seed))}
	for k, v := range seed {
		m.entries[k] = v
	}
	return m
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Put implements Cache.
func (m *MemoryCache) Put(_ context.Context, key string, e CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

// Snapshot returns a copy of the cached entries.
func (m *MemoryCache) Snapshot() map[string]CacheEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]CacheEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
