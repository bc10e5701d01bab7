package secret

import (
	"strings"
	"testing"
)

func TestWrapAndReveal(t *testing.T) {
	s := Wrap("sk-test-material")
	if s.Reveal() != "sk-test-material" {
		t.Errorf("Expected wrapped material back, got %q", s.Reveal())
	}
}

func TestReleaseScrubs(t *testing.T) {
	s := Wrap("sk-test-material")
	s.Release()

	if s.Reveal() != "" {
		t.Errorf("Expected empty reveal after release, got %q", s.Reveal())
	}
	if !s.Released() {
		t.Error("Expected Released to report true")
	}

	// Double release must be safe
	s.Release()
}

func TestCacheHashStableAndOpaque(t *testing.T) {
	a := Wrap("sk-" + strings.Repeat("A", 48))
	b := Wrap("sk-" + strings.Repeat("A", 48))

	ha := a.CacheHash("openai")
	hb := b.CacheHash("openai")
	if ha != hb {
		t.Errorf("Same provider+key must hash identically: %s vs %s", ha, hb)
	}

	if hc := a.CacheHash("anthropic"); hc == ha {
		t.Error("Different providers must not share a cache hash")
	}

	if strings.Contains(ha, "sk-") || strings.Contains(ha, strings.Repeat("A", 8)) {
		t.Error("Cache hash must not reveal key material")
	}
}

func TestWithKeyReleasesOnAllPaths(t *testing.T) {
	var captured *Secret
	err := WithKey("sk-abc", func(s *Secret) error {
		captured = s
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !captured.Released() {
		t.Error("Expected secret released after WithKey returns")
	}

	defer func() {
		recover()
		if !captured.Released() {
			t.Error("Expected secret released after panic inside WithKey")
		}
	}()
	_ = WithKey("sk-def", func(s *Secret) error {
		captured = s
		panic("boom")
	})
}

func TestMask(t *testing.T) {
	if got := Mask("sk-1234567890abcdef"); strings.Contains(got, "567890") {
		t.Errorf("Mask leaked middle of key: %q", got)
	}
	if got := Mask("short"); got != "***" {
		t.Errorf("Expected short keys fully masked, got %q", got)
	}
}
