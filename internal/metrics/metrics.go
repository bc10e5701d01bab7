package metrics

import (
	"sync"
	"time"

	"keywarden-go/internal/models"
)

// SystemMetrics represents runtime validation metrics
type SystemMetrics struct {
	// Validation metrics
	TotalValidations int64
	ValidKeys        int64
	InvalidKeys      int64
	RateLimitedKeys  int64
	NetworkFailures  int64
	RetriesPerformed int64

	// Pattern stage metrics
	PatternRejections int64

	// Cache metrics
	CacheHits     int64
	CacheMisses   int64
	CacheHitRate  float64
	CacheMissRate float64

	// Performance metrics
	AverageResponseTime float64

	// Provider metrics
	ProviderMetrics map[string]ProviderMetrics

	// Timestamps
	StartTime      time.Time
	LastUpdateTime time.Time

	mutex sync.RWMutex
}

// ProviderMetrics represents metrics for a specific provider
type ProviderMetrics struct {
	ProviderID          string
	Validations         int64
	ValidKeys           int64
	InvalidKeys         int64
	RateLimitedKeys     int64
	NetworkFailures     int64
	AverageResponseTime float64
	LastValidated       time.Time
}

// NewSystemMetrics creates a new system metrics instance
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		ProviderMetrics: make(map[string]ProviderMetrics),
		StartTime:       time.Now(),
		LastUpdateTime:  time.Now(),
	}
}

// RecordValidation records the outcome of one full validation request
func (sm *SystemMetrics) RecordValidation(provider string, result models.ValidationResult) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.TotalValidations++
	pm := sm.ProviderMetrics[provider]
	pm.ProviderID = provider
	pm.Validations++

	switch {
	case result.Valid:
		sm.ValidKeys++
		pm.ValidKeys++
	case result.ErrorKind == models.ErrorRateLimited:
		sm.RateLimitedKeys++
		pm.RateLimitedKeys++
	case result.ErrorKind == models.ErrorNetwork:
		sm.NetworkFailures++
		pm.NetworkFailures++
	default:
		sm.InvalidKeys++
		pm.InvalidKeys++
	}

	elapsed := float64(result.Elapsed.Milliseconds())
	sm.AverageResponseTime = rollingAverage(sm.AverageResponseTime, elapsed, sm.TotalValidations)
	pm.AverageResponseTime = rollingAverage(pm.AverageResponseTime, elapsed, pm.Validations)
	pm.LastValidated = time.Now()

	sm.ProviderMetrics[provider] = pm
	sm.LastUpdateTime = time.Now()
}

// RecordPatternRejection records a key rejected before any network call
func (sm *SystemMetrics) RecordPatternRejection(provider string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.PatternRejections++
	sm.LastUpdateTime = time.Now()
}

// RecordRetry increments the retry counter
func (sm *SystemMetrics) RecordRetry(provider string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.RetriesPerformed++
	sm.LastUpdateTime = time.Now()
}

// RecordCacheHit increments the cache hit counter
func (sm *SystemMetrics) RecordCacheHit() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.CacheHits++
	sm.recalcCacheRates()
	sm.LastUpdateTime = time.Now()
}

// RecordCacheMiss increments the cache miss counter
func (sm *SystemMetrics) RecordCacheMiss() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.CacheMisses++
	sm.recalcCacheRates()
	sm.LastUpdateTime = time.Now()
}

func (sm *SystemMetrics) recalcCacheRates() {
	total := sm.CacheHits + sm.CacheMisses
	if total == 0 {
		return
	}
	sm.CacheHitRate = float64(sm.CacheHits) / float64(total)
	sm.CacheMissRate = float64(sm.CacheMisses) / float64(total)
}

// GetMetrics returns a copy of current metrics
func (sm *SystemMetrics) GetMetrics() SystemMetrics {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	providerCopy := make(map[string]ProviderMetrics)
	for k, v := range sm.ProviderMetrics {
		providerCopy[k] = v
	}

	return SystemMetrics{
		TotalValidations:    sm.TotalValidations,
		ValidKeys:           sm.ValidKeys,
		InvalidKeys:         sm.InvalidKeys,
		RateLimitedKeys:     sm.RateLimitedKeys,
		NetworkFailures:     sm.NetworkFailures,
		RetriesPerformed:    sm.RetriesPerformed,
		PatternRejections:   sm.PatternRejections,
		CacheHits:           sm.CacheHits,
		CacheMisses:         sm.CacheMisses,
		CacheHitRate:        sm.CacheHitRate,
		CacheMissRate:       sm.CacheMissRate,
		AverageResponseTime: sm.AverageResponseTime,
		ProviderMetrics:     providerCopy,
		StartTime:           sm.StartTime,
		LastUpdateTime:      sm.LastUpdateTime,
	}
}

// GetUptime returns the system uptime
func (sm *SystemMetrics) GetUptime() time.Duration {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return time.Since(sm.StartTime)
}

// Reset resets all metrics
func (sm *SystemMetrics) Reset() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.TotalValidations = 0
	sm.ValidKeys = 0
	sm.InvalidKeys = 0
	sm.RateLimitedKeys = 0
	sm.NetworkFailures = 0
	sm.RetriesPerformed = 0
	sm.PatternRejections = 0
	sm.CacheHits = 0
	sm.CacheMisses = 0
	sm.CacheHitRate = 0
	sm.CacheMissRate = 0
	sm.AverageResponseTime = 0
	sm.ProviderMetrics = make(map[string]ProviderMetrics)
	sm.StartTime = time.Now()
	sm.LastUpdateTime = time.Now()
}

func rollingAverage(current, sample float64, count int64) float64 {
	if count <= 0 {
		return sample
	}
	return current + (sample-current)/float64(count)
}
