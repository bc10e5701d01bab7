package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"keywarden-go/internal/models"
)

// KeySpec describes the expected shape of a provider's API keys
type KeySpec struct {
	Prefix  string
	MinLen  int
	MaxLen  int
	Charset *regexp.Regexp
}

// NewKeySpec creates a key spec with an exact length
func NewKeySpec(prefix string, length int, charset string) KeySpec {
	return NewRangedKeySpec(prefix, length, length, charset)
}

// NewRangedKeySpec creates a key spec with a length range
func NewRangedKeySpec(prefix string, minLen, maxLen int, charset string) KeySpec {
	return KeySpec{
		Prefix:  prefix,
		MinLen:  minLen,
		MaxLen:  maxLen,
		Charset: regexp.MustCompile("^[" + charset + "]+$"),
	}
}

// Validate checks a key against the spec. Checks run in fixed priority
// order (prefix, length, charset) so a key failing on multiple axes
// reports the first failing axis deterministically. Pure string
// inspection, no I/O.
func Validate(key string, spec KeySpec) models.PatternResult {
	start := time.Now()

	// An empty key cannot match any expected prefix
	if key == "" || !strings.HasPrefix(key, spec.Prefix) {
		return models.PatternResult{
			Valid:     false,
			ErrorKind: models.ErrorInvalidPrefix,
			Message:   fmt.Sprintf("key must start with %q", spec.Prefix),
			Elapsed:   time.Since(start),
		}
	}

	if len(key) < spec.MinLen || len(key) > spec.MaxLen {
		msg := fmt.Sprintf("key must be %d characters, got %d", spec.MinLen, len(key))
		if spec.MinLen != spec.MaxLen {
			msg = fmt.Sprintf("key must be %d-%d characters, got %d", spec.MinLen, spec.MaxLen, len(key))
		}
		return models.PatternResult{
			Valid:     false,
			ErrorKind: models.ErrorInvalidLength,
			Message:   msg,
			Elapsed:   time.Since(start),
		}
	}

	// Charset applies to the part after the prefix
	body := key[len(spec.Prefix):]
	if body != "" && !spec.Charset.MatchString(body) {
		return models.PatternResult{
			Valid:     false,
			ErrorKind: models.ErrorInvalidCharacters,
			Message:   "key contains characters outside the allowed set",
			Elapsed:   time.Since(start),
		}
	}

	return models.PatternResult{
		Valid:   true,
		Elapsed: time.Since(start),
	}
}
