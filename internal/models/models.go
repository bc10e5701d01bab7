package models

import (
	"time"
)

// ErrorKind classifies a validation failure
type ErrorKind string

const (
	ErrorNone              ErrorKind = ""
	ErrorInvalidPrefix     ErrorKind = "INVALID_PREFIX"
	ErrorInvalidLength     ErrorKind = "INVALID_LENGTH"
	ErrorInvalidCharacters ErrorKind = "INVALID_CHARACTERS"
	ErrorAuthInvalid       ErrorKind = "AUTH_INVALID"
	ErrorRateLimited       ErrorKind = "RATE_LIMITED"
	ErrorServerError       ErrorKind = "SERVER_ERROR"
	ErrorNetwork           ErrorKind = "NETWORK"
	ErrorConfiguration     ErrorKind = "CONFIGURATION"
	ErrorUnknown           ErrorKind = "UNKNOWN"
)

// Strategy selects how far a validation request goes
type Strategy string

const (
	StrategyPatternOnly Strategy = "pattern-only"
	StrategyLive        Strategy = "live"
	StrategyAuto        Strategy = "auto"
)

// PatternResult represents the outcome of an offline format check
type PatternResult struct {
	Valid     bool          `json:"valid"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Message   string        `json:"message,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ValidationResult represents the outcome of a full validation request.
// It is produced once per request and never mutated afterwards.
type ValidationResult struct {
	Valid       bool                   `json:"valid"`
	Provider    string                 `json:"provider"`
	HTTPStatus  int                    `json:"http_status"`
	ErrorKind   ErrorKind              `json:"error_kind,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Suggestions []string               `json:"suggestions,omitempty"`
	Elapsed     time.Duration          `json:"elapsed"`
	FromCache   bool                   `json:"from_cache"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Retryable reports whether the result's error kind is worth retrying
func (vr *ValidationResult) Retryable() bool {
	switch vr.ErrorKind {
	case ErrorNetwork, ErrorServerError, ErrorRateLimited:
		return true
	default:
		return false
	}
}

// Options represents per-call validation options
type Options struct {
	Timeout     time.Duration `json:"timeout,omitempty"`
	BypassCache bool          `json:"bypass_cache,omitempty"`
	Strategy    Strategy      `json:"strategy,omitempty"`
}

// RateLimitConfig represents per-provider admission ceilings and backoff shape
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	RequestsPerHour   int           `json:"requests_per_hour"`
	Burst             int           `json:"burst"`
	BackoffBase       time.Duration `json:"backoff_base"`
	BackoffMax        time.Duration `json:"backoff_max"`
	Exponential       bool          `json:"exponential"`
}

// BatchRequest represents one item of a batch validation call
type BatchRequest struct {
	Provider string   `json:"provider"`
	Key      string   `json:"key"`
	Options  *Options `json:"options,omitempty"`
}

// BatchOptions represents options for a batch validation call
type BatchOptions struct {
	Concurrency int
	// OnProgress fires once per completed item, in completion order.
	OnProgress func(completed, total int)
}
