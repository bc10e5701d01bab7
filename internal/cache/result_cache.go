package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"keywarden-go/internal/models"
)

// Entry represents a cached validation outcome. Entries are keyed by a
// one-way hash of (provider, key); no key material is ever stored.
type Entry struct {
	Result     models.ValidationResult `json:"result"`
	InsertedAt time.Time               `json:"inserted_at"`
	TTL        time.Duration           `json:"ttl"`
	HitCount   int64                   `json:"hit_count"`
}

// expired reports whether the entry's TTL has lapsed
func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.InsertedAt) >= e.TTL
}

// Metrics represents cache performance counters
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Puts      int64
	Skipped   int64 // non-cacheable outcomes offered to Put
}

// ResultCache is a bounded TTL cache for validation outcomes. Only
// successful live outcomes are stored; negative and error outcomes are
// skipped so a caller can retry immediately after fixing something.
// An optional Redis layer shares outcomes across processes.
type ResultCache struct {
	local   *lru.Cache[string, *Entry]
	redis   *RedisCache
	ttl     time.Duration
	cap     int
	mu      sync.Mutex
	metrics Metrics
}

// New creates a result cache with the given capacity and default TTL
func New(capacity int, ttl time.Duration) (*ResultCache, error) {
	local, err := lru.New[string, *Entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &ResultCache{
		local: local,
		ttl:   ttl,
		cap:   capacity,
	}, nil
}

// WithRedis attaches a shared Redis layer
func (rc *ResultCache) WithRedis(r *RedisCache) *ResultCache {
	rc.redis = r
	return rc
}

// Get returns the cached outcome for a hash, treating expired entries
// as absent.
func (rc *ResultCache) Get(hash string) (models.ValidationResult, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	if entry, ok := rc.local.Get(hash); ok {
		if entry.expired(now) {
			rc.local.Remove(hash)
		} else {
			entry.HitCount++
			rc.metrics.Hits++
			return entry.Result, true
		}
	}

	if rc.redis != nil {
		if result, ok := rc.redis.Get(hash); ok {
			// Promote into the local layer
			rc.insert(hash, &Entry{
				Result:     result,
				InsertedAt: now,
				TTL:        rc.ttl,
				HitCount:   1,
			})
			rc.metrics.Hits++
			return result, true
		}
	}

	rc.metrics.Misses++
	return models.ValidationResult{}, false
}

// Put stores a validation outcome if it is cacheable. Invalid-key and
// error outcomes are never stored.
func (rc *ResultCache) Put(hash string, result models.ValidationResult) {
	if !result.Valid || result.ErrorKind != models.ErrorNone {
		rc.mu.Lock()
		rc.metrics.Skipped++
		rc.mu.Unlock()
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.insert(hash, &Entry{
		Result:     result,
		InsertedAt: time.Now(),
		TTL:        rc.ttl,
	})
	rc.metrics.Puts++

	if rc.redis != nil {
		_ = rc.redis.Set(hash, result, rc.ttl)
	}
}

// insert adds an entry, evicting the lowest-hit-count entry when at
// capacity; caller holds the lock
func (rc *ResultCache) insert(hash string, entry *Entry) {
	if rc.local.Len() >= rc.cap && !rc.local.Contains(hash) {
		var victim string
		var lowest int64 = -1
		for _, key := range rc.local.Keys() {
			if e, ok := rc.local.Peek(key); ok {
				if lowest < 0 || e.HitCount < lowest {
					lowest = e.HitCount
					victim = key
				}
			}
		}
		if lowest >= 0 {
			rc.local.Remove(victim)
			rc.metrics.Evictions++
		}
	}
	rc.local.Add(hash, entry)
}

// Contains reports whether an unexpired entry exists without counting a
// hit or touching recency.
func (rc *ResultCache) Contains(hash string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	entry, ok := rc.local.Peek(hash)
	if !ok {
		return false
	}
	return !entry.expired(time.Now())
}

// Delete removes an entry from all layers
func (rc *ResultCache) Delete(hash string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.local.Remove(hash)
	if rc.redis != nil {
		_ = rc.redis.Delete(hash)
	}
}

// Purge clears the local layer
func (rc *ResultCache) Purge() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.local.Purge()
}

// Len returns the number of locally cached entries
func (rc *ResultCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.local.Len()
}

// HitRate returns the local hit rate
func (rc *ResultCache) HitRate() float64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	total := rc.metrics.Hits + rc.metrics.Misses
	if total == 0 {
		return 0.0
	}
	return float64(rc.metrics.Hits) / float64(total)
}

// GetMetrics returns a copy of the cache counters
func (rc *ResultCache) GetMetrics() Metrics {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.metrics
}

// Keys returns the hashes currently held locally, oldest first. Exposed
// for inspection; values are one-way hashes, never key material.
func (rc *ResultCache) Keys() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.local.Keys()
}
