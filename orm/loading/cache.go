package loading

import (
	"sort"
	"sync"
	"time"
)

// CacheKey identifies one model instance's loaded relationship.
type CacheKey struct {
	ModelType    string
	ModelID      any
	Relationship string
}

// CacheEntry is a cached relationship payload plus the bookkeeping needed
// for TTL expiry and memory-pressure eviction.
type CacheEntry struct {
	Data         any
	CreatedAt    time.Time
	LastAccessed time.Time
	SizeBytes    int
}

// RelationshipCacheConfig bounds the cache's size and lifetime.
type RelationshipCacheConfig struct {
	MaxRelationshipsPerType int
	MaxMemoryBytes          int64
	TTL                     time.Duration
	EnableMetrics           bool
}

func DefaultRelationshipCacheConfig() RelationshipCacheConfig {
	return RelationshipCacheConfig{
		MaxRelationshipsPerType: 1000,
		MaxMemoryBytes:          50 * 1024 * 1024,
		TTL:                     300 * time.Second,
		EnableMetrics:           true,
	}
}

// CacheStats reports hit/miss/eviction counters. They are kept whether or
// not EnableMetrics is set.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// RelationshipCache is a shared, cross-request cache of loaded relationship
// data, backed by a RWMutex so reads run concurrently and writes serialize.
// The lock is never held across I/O: eviction collects victim keys under
// the lock, then deletes them in a second, minimal critical section.
type RelationshipCache struct {
	cfg     RelationshipCacheConfig
	mu      sync.RWMutex
	entries map[CacheKey]*CacheEntry
	usage   int64
	stats   CacheStats
}

func NewRelationshipCache(cfg RelationshipCacheConfig) *RelationshipCache {
	if cfg.MaxRelationshipsPerType <= 0 {
		cfg.MaxRelationshipsPerType = 1000
	}
	if cfg.MaxMemoryBytes <= 0 {
		cfg.MaxMemoryBytes = 50 * 1024 * 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 300 * time.Second
	}
	return &RelationshipCache{cfg: cfg, entries: make(map[CacheKey]*CacheEntry)}
}

// Store inserts or overwrites a relationship payload.
func (c *RelationshipCache) Store(key CacheKey, data any) {
	size := estimateJSONSize(data)
	now := timeNow()

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[key]; ok {
		c.usage -= int64(old.SizeBytes)
	}
	c.entries[key] = &CacheEntry{Data: data, CreatedAt: now, LastAccessed: now, SizeBytes: size}
	c.usage += int64(size)
}

// Get returns the cached data for key. An expired entry is removed and
// reported as a miss rather than returned stale.
func (c *RelationshipCache) Get(key CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if timeNow().Sub(entry.CreatedAt) > c.cfg.TTL {
		c.usage -= int64(entry.SizeBytes)
		delete(c.entries, key)
		c.stats.Misses++
		return nil, false
	}

	entry.LastAccessed = timeNow()
	c.stats.Hits++
	return entry.Data, true
}

// Contains reports whether key is present and unexpired, without affecting
// LastAccessed or hit/miss counters.
func (c *RelationshipCache) Contains(key CacheKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	return timeNow().Sub(entry.CreatedAt) <= c.cfg.TTL
}

func (c *RelationshipCache) Remove(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		c.usage -= int64(entry.SizeBytes)
		delete(c.entries, key)
	}
}

// ClearModel removes every cached relationship for one model instance.
func (c *RelationshipCache) ClearModel(modelType string, modelID any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if key.ModelType == modelType && key.ModelID == modelID {
			c.usage -= int64(entry.SizeBytes)
			delete(c.entries, key)
		}
	}
}

// ClearModelType removes every cached relationship for a model type.
func (c *RelationshipCache) ClearModelType(modelType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if key.ModelType == modelType {
			c.usage -= int64(entry.SizeBytes)
			delete(c.entries, key)
		}
	}
}

func (c *RelationshipCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]*CacheEntry)
	c.usage = 0
}

func (c *RelationshipCache) MemoryUsage() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usage
}

func (c *RelationshipCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.Entries = len(c.entries)
	return stats
}

// EvictByMemory evicts oldest-by-LastAccessed entries until usage is back
// under 0.8 * MaxMemoryBytes. Victim keys are collected under a read lock,
// then deleted in a second, minimal write-locked pass.
func (c *RelationshipCache) EvictByMemory() int {
	target := int64(0.8 * float64(c.cfg.MaxMemoryBytes))

	c.mu.RLock()
	if c.usage <= target {
		c.mu.RUnlock()
		return 0
	}
	type candidate struct {
		key          CacheKey
		lastAccessed time.Time
		size         int
	}
	candidates := make([]candidate, 0, len(c.entries))
	for key, entry := range c.entries {
		candidates = append(candidates, candidate{key, entry.LastAccessed, entry.SizeBytes})
	}
	usage := c.usage
	c.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
	})

	var victims []CacheKey
	for _, cand := range candidates {
		if usage <= target {
			break
		}
		victims = append(victims, cand.key)
		usage -= int64(cand.size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for _, key := range victims {
		if entry, ok := c.entries[key]; ok {
			c.usage -= int64(entry.SizeBytes)
			delete(c.entries, key)
			evicted++
		}
	}
	c.stats.Evictions += int64(evicted)
	return evicted
}

// CleanupExpired removes every entry past its TTL, using the same
// collect-under-lock-then-delete discipline as EvictByMemory.
func (c *RelationshipCache) CleanupExpired() int {
	c.mu.RLock()
	var expired []CacheKey
	now := timeNow()
	for key, entry := range c.entries {
		if now.Sub(entry.CreatedAt) > c.cfg.TTL {
			expired = append(expired, key)
		}
	}
	c.mu.RUnlock()

	if len(expired) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, key := range expired {
		if entry, ok := c.entries[key]; ok {
			c.usage -= int64(entry.SizeBytes)
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// estimateJSONSize is a deterministic recursive byte-cost walker: it never
// marshals to JSON, it just approximates the cost the way the data would
// serialize.
func estimateJSONSize(v any) int {
	switch val := v.(type) {
	case nil:
		return 4
	case bool:
		return 4
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 8
	case string:
		return len(val) + 24
	case []any:
		size := 24
		for _, item := range val {
			size += estimateJSONSize(item)
		}
		return size
	case map[string]any:
		size := 48
		for k, item := range val {
			size += len(k) + estimateJSONSize(item)
		}
		return size
	default:
		return 8
	}
}

func timeNow() time.Time {
	return time.Now()
}
