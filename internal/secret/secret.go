package secret

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Secret holds key material for the duration of a single validation
// request. The owner must call Release on every exit path; after Release
// the material is zeroed and unrecoverable through this value.
type Secret struct {
	mu       sync.Mutex
	buf      []byte
	released bool
}

// Wrap copies key material into a scoped secret
func Wrap(key string) *Secret {
	buf := make([]byte, len(key))
	copy(buf, key)
	return &Secret{buf: buf}
}

// Reveal returns the key material, or an empty string after release
func (s *Secret) Reveal() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ""
	}
	return string(s.buf)
}

// Release zeroes the key material. Safe to call more than once.
func (s *Secret) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.buf {
		s.buf[i] = 0
	}
	s.buf = nil
	s.released = true
}

// Released reports whether the material has been scrubbed
func (s *Secret) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// CacheHash derives the one-way cache key for (provider, key). Only this
// hash may be used to index cached outcomes; the raw key never is.
func (s *Secret) CacheHash(provider string) string {
	sum := sha256.Sum256([]byte(provider + ":" + s.Reveal()))
	return hex.EncodeToString(sum[:])
}

// WithKey wraps key material for the duration of fn and guarantees
// release on every exit path, including panics.
func WithKey(key string, fn func(s *Secret) error) error {
	s := Wrap(key)
	defer s.Release()
	return fn(s)
}

// Mask returns a log-safe form of a key, keeping only the edges
func Mask(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return fmt.Sprintf("%s***%s", key[:4], key[len(key)-4:])
}
