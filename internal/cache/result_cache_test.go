package cache

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"keywarden-go/internal/models"
	"keywarden-go/internal/secret"
)

func validResult(provider string) models.ValidationResult {
	return models.ValidationResult{
		Valid:      true,
		Provider:   provider,
		HTTPStatus: 200,
	}
}

func TestPutAndGet(t *testing.T) {
	rc, err := New(10, time.Minute)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	rc.Put("hash1", validResult("openai"))

	result, ok := rc.Get("hash1")
	if !ok {
		t.Fatal("Expected cached result")
	}
	if !result.Valid || result.Provider != "openai" {
		t.Errorf("Cached result mismatch: %+v", result)
	}
}

func TestNegativeResultsNeverCached(t *testing.T) {
	rc, _ := New(10, time.Minute)

	rc.Put("bad", models.ValidationResult{
		Valid:     false,
		Provider:  "openai",
		ErrorKind: models.ErrorAuthInvalid,
	})

	if rc.Contains("bad") {
		t.Error("Invalid-key outcome must not be cached")
	}
	if _, ok := rc.Get("bad"); ok {
		t.Error("Expected no cache entry for a negative outcome")
	}

	metrics := rc.GetMetrics()
	if metrics.Skipped != 1 {
		t.Errorf("Expected 1 skipped put, got %d", metrics.Skipped)
	}
}

func TestLazyExpiry(t *testing.T) {
	rc, _ := New(10, 50*time.Millisecond)

	rc.Put("hash1", validResult("openai"))
	time.Sleep(80 * time.Millisecond)

	if _, ok := rc.Get("hash1"); ok {
		t.Error("Expected expired entry to be treated as absent")
	}
	if rc.Contains("hash1") {
		t.Error("Contains must treat expired entries as absent")
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	rc, _ := New(2, time.Minute)

	rc.Put("a", validResult("openai"))
	rc.Put("b", validResult("openai"))

	// Make "b" popular so "a" has the lowest hit count
	rc.Get("b")
	rc.Get("b")

	rc.Put("c", validResult("openai"))

	if rc.Contains("a") {
		t.Error("Expected the lowest-hit-count entry to be evicted")
	}
	if !rc.Contains("b") || !rc.Contains("c") {
		t.Error("Expected popular and new entries to survive eviction")
	}
	if rc.Len() != 2 {
		t.Errorf("Expected cache to stay at capacity 2, got %d", rc.Len())
	}
}

func TestNoRawKeyMaterialStored(t *testing.T) {
	rawKey := "sk-" + strings.Repeat("A", 48)
	s := secret.Wrap(rawKey)
	hash := s.CacheHash("openai")

	rc, _ := New(10, time.Minute)
	rc.Put(hash, validResult("openai"))

	// Serialize everything reachable from cache internals and check for
	// any substring of the key
	for _, key := range rc.Keys() {
		if strings.Contains(key, "sk-") || strings.Contains(key, strings.Repeat("A", 8)) {
			t.Errorf("Cache key %q reveals key material", key)
		}
		entry, _ := rc.local.Peek(key)
		data, err := json.Marshal(entry)
		if err != nil {
			t.Fatalf("Failed to serialize entry: %v", err)
		}
		if strings.Contains(string(data), rawKey) {
			t.Error("Serialized cache state contains raw key material")
		}
	}
}

func TestHitRate(t *testing.T) {
	rc, _ := New(10, time.Minute)
	rc.Put("a", validResult("openai"))

	rc.Get("a")
	rc.Get("missing")

	if rate := rc.HitRate(); rate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %f", rate)
	}
}
