package metrics

import (
	"testing"
	"time"

	"keywarden-go/internal/models"
)

func TestRecordValidationCountsOutcomes(t *testing.T) {
	sm := NewSystemMetrics()

	sm.RecordValidation("openai", models.ValidationResult{Valid: true, Elapsed: 100 * time.Millisecond})
	sm.RecordValidation("openai", models.ValidationResult{ErrorKind: models.ErrorAuthInvalid, Elapsed: 50 * time.Millisecond})
	sm.RecordValidation("openai", models.ValidationResult{ErrorKind: models.ErrorRateLimited})
	sm.RecordValidation("gemini", models.ValidationResult{ErrorKind: models.ErrorNetwork})

	m := sm.GetMetrics()
	if m.TotalValidations != 4 {
		t.Errorf("expected 4 validations, got %d", m.TotalValidations)
	}
	if m.ValidKeys != 1 || m.InvalidKeys != 1 || m.RateLimitedKeys != 1 || m.NetworkFailures != 1 {
		t.Errorf("unexpected outcome counts: %+v", &m)
	}

	openai := m.ProviderMetrics["openai"]
	if openai.Validations != 3 {
		t.Errorf("expected 3 openai validations, got %d", openai.Validations)
	}
	if openai.ValidKeys != 1 {
		t.Errorf("expected 1 valid openai key, got %d", openai.ValidKeys)
	}
}

func TestCacheRates(t *testing.T) {
	sm := NewSystemMetrics()
	sm.RecordCacheHit()
	sm.RecordCacheHit()
	sm.RecordCacheHit()
	sm.RecordCacheMiss()

	m := sm.GetMetrics()
	if m.CacheHitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %f", m.CacheHitRate)
	}
	if m.CacheMissRate != 0.25 {
		t.Errorf("expected miss rate 0.25, got %f", m.CacheMissRate)
	}
}

func TestResetClearsEverything(t *testing.T) {
	sm := NewSystemMetrics()
	sm.RecordValidation("openai", models.ValidationResult{Valid: true})
	sm.RecordRetry("openai")
	sm.RecordPatternRejection("openai")
	sm.Reset()

	m := sm.GetMetrics()
	if m.TotalValidations != 0 || m.RetriesPerformed != 0 || m.PatternRejections != 0 {
		t.Errorf("expected zeroed metrics after reset, got %+v", &m)
	}
	if len(m.ProviderMetrics) != 0 {
		t.Errorf("expected empty provider metrics, got %d entries", len(m.ProviderMetrics))
	}
}

func TestGetMetricsReturnsCopy(t *testing.T) {
	sm := NewSystemMetrics()
	sm.RecordValidation("openai", models.ValidationResult{Valid: true})

	m := sm.GetMetrics()
	m.ProviderMetrics["openai"] = ProviderMetrics{Validations: 999}

	if sm.GetMetrics().ProviderMetrics["openai"].Validations != 1 {
		t.Error("mutating the returned copy must not affect the collector")
	}
}
