package jsonapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default cache settings.
const (
	DefaultCacheSize            = 1000
	DefaultCacheTTL             = 5 * time.Minute
	DefaultCacheCleanupInterval = time.Minute
)

// CacheEntry is a cached response body. An entry past StaleAt but before
// ExpiresAt may only be served after revalidation with its ETag.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	ETag      string    `json:"etag,omitempty"`
	StaleAt   time.Time `json:"stale_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the entry is past its expiry.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Stale reports whether the entry needs revalidation before use.
func (e *CacheEntry) Stale() bool {
	return !e.StaleAt.IsZero() && time.Now().After(e.StaleAt)
}

// Cache is a response cache backend.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheOptions are backend-independent cache settings.
type CacheOptions struct {
	TTL         time.Duration
	MaxSize     int
	EnableETags bool
}

// DefaultCacheOptions returns default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		TTL:         DefaultCacheTTL,
		MaxSize:     DefaultCacheSize,
		EnableETags: true,
	}
}

// MemoryCache is a bounded in-process cache. When full, the entry closest to
// expiry is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}

	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
	}
}

// Get returns a live entry.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}

	if entry.Expired() {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	return entry, nil
}

// Set stores an entry, evicting one if the cache is full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = entry

	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry)

	return nil
}

// Has reports whether a live entry exists.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]

	return ok && !entry.Expired()
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Cleanup drops expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) evictLocked() {
	var (
		victim string
		oldest time.Time
	)

	for key, entry := range c.entries {
		if victim == "" || entry.ExpiresAt.Before(oldest) {
			victim = key
			oldest = entry.ExpiresAt
		}
	}

	if victim != "" {
		delete(c.entries, victim)
	}
}

// NoOpCache stores nothing; every lookup misses.
type NoOpCache struct{}

// Get always fails with ErrCacheDisabled.
func (NoOpCache) Get(context.Context, string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

// Set discards the entry.
func (NoOpCache) Set(context.Context, string, *CacheEntry) error { return nil }

// Delete is a no-op.
func (NoOpCache) Delete(context.Context, string) error { return nil }

// Clear is a no-op.
func (NoOpCache) Clear(context.Context) error { return nil }

// Has is always false.
func (NoOpCache) Has(context.Context, string) bool { return false }

// CacheChain layers backends from fastest to slowest. A read falls through
// the levels and copies its hit into every faster level; writes reach all
// of them.
type CacheChain struct {
	levels []Cache
}

// NewCacheChain chains levels in lookup order.
func NewCacheChain(levels ...Cache) *CacheChain {
	return &CacheChain{levels: levels}
}

// Get returns the entry from the fastest level holding it.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, level := range c.levels {
		entry, err := level.Get(ctx, key)
		if err != nil {
			continue
		}

		for _, faster := range c.levels[:i] {
			_ = faster.Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
}

// Set writes the entry to every level.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.each(func(level Cache) error { return level.Set(ctx, key, entry) })
}

// Delete removes the key from every level.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.each(func(level Cache) error { return level.Delete(ctx, key) })
}

// Clear empties every level.
func (c *CacheChain) Clear(ctx context.Context) error {
	return c.each(func(level Cache) error { return level.Clear(ctx) })
}

// Has reports whether any level holds a live entry.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, level := range c.levels {
		if level.Has(ctx, key) {
			return true
		}
	}

	return false
}

// Cleanup drops expired entries from levels that support it.
func (c *CacheChain) Cleanup() {
	for _, level := range c.levels {
		if cleaner, ok := level.(interface{ Cleanup() }); ok {
			cleaner.Cleanup()
		}
	}
}

// Close releases levels that hold connections.
func (c *CacheChain) Close() {
	for _, level := range c.levels {
		if closer, ok := level.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

func (c *CacheChain) each(apply func(Cache) error) error {
	var errs []error

	for _, level := range c.levels {
		if err := apply(level); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CacheStats counts cache activity.
type CacheStats struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// GetHitRate returns hits / (hits + misses).
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// CacheManager wraps a backend with key derivation and statistics.
type CacheManager struct {
	cache   Cache
	options *CacheOptions

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewCacheManager creates a cache manager. Nil arguments select an
// in-memory cache and default options.
func NewCacheManager(cache Cache, options *CacheOptions) *CacheManager {
	if options == nil {
		options = DefaultCacheOptions()
	}

	if cache == nil {
		cache = NewMemoryCache(options.MaxSize)
	}

	return &CacheManager{
		cache:   cache,
		options: options,
	}
}

// Options returns the manager's options.
func (m *CacheManager) Options() *CacheOptions {
	return m.options
}

// GetCacheKey derives a cache key from a method, URL and optional extra
// parameters (sorted by name).
func (m *CacheManager) GetCacheKey(method, url string, params map[string]string) string {
	key := method + ":" + url
	if len(params) == 0 {
		return key
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}

	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+params[name])
	}

	return key + ":" + strings.Join(pairs, "&")
}

// Get returns cached data.
func (m *CacheManager) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := m.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}

	return entry.Data, nil
}

// GetEntry returns a cached entry, counting hits and misses.
func (m *CacheManager) GetEntry(ctx context.Context, key string) (*CacheEntry, error) {
	entry, err := m.cache.Get(ctx, key)
	if err != nil {
		m.misses.Add(1)

		return nil, err
	}

	m.hits.Add(1)

	return entry, nil
}

// Set stores data for ttl (the default TTL when ttl is zero).
func (m *CacheManager) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.SetWithETag(ctx, key, data, "", ttl)
}

// SetWithETag stores data together with its ETag. With ETags enabled, a
// tagged entry is retained for a second ttl after going stale so it can be
// revalidated.
func (m *CacheManager) SetWithETag(ctx context.Context, key string, data []byte, etag string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.options.TTL
	}

	now := time.Now()
	entry := &CacheEntry{
		Data:      data,
		ETag:      etag,
		CreatedAt: now,
		StaleAt:   now.Add(ttl),
		ExpiresAt: now.Add(ttl),
	}

	if etag != "" && m.options.EnableETags {
		entry.ExpiresAt = now.Add(2 * ttl)
	}

	err := m.cache.Set(ctx, key, entry)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	m.sets.Add(1)

	return nil
}

// Invalidate removes one key.
func (m *CacheManager) Invalidate(ctx context.Context, key string) error {
	return m.cache.Delete(ctx, key)
}

// Clear empties the backend.
func (m *CacheManager) Clear(ctx context.Context) error {
	return m.cache.Clear(ctx)
}

// GetStats returns a snapshot of the statistics.
func (m *CacheManager) GetStats() CacheStats {
	return CacheStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Sets:   m.sets.Load(),
	}
}

// CachingPolicy decides which responses are cached.
type CachingPolicy struct {
	CacheGET     bool
	CacheErrors  bool
	IncludePaths []string
	ExcludePaths []string
}

// DefaultCachingPolicy caches successful GET responses for every path.
func DefaultCachingPolicy() *CachingPolicy {
	return &CachingPolicy{
		CacheGET: true,
	}
}

// ShouldCache reports whether a response may be stored. Paths match by
// substring of the request URL.
func (p *CachingPolicy) ShouldCache(method, url string, statusCode int) bool {
	if method != "GET" || !p.CacheGET {
		return false
	}

	if statusCode >= 300 && !p.CacheErrors {
		return false
	}

	for _, excluded := range p.ExcludePaths {
		if strings.Contains(url, excluded) {
			return false
		}
	}

	if len(p.IncludePaths) == 0 {
		return true
	}

	for _, included := range p.IncludePaths {
		if strings.Contains(url, included) {
			return true
		}
	}

	return false
}
