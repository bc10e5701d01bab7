package classify

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"

	"keywarden-go/internal/models"
)

// Classification maps a raw failure into the closed error taxonomy
type Classification struct {
	Kind        models.ErrorKind
	Retryable   bool
	Message     string
	Suggestions []string
}

// Classify maps a transport error or HTTP status into the taxonomy.
// Pass status 0 when no response was received.
func Classify(err error, status int) Classification {
	if err != nil {
		return classifyError(err)
	}
	return ClassifyStatus(status)
}

// classifyError handles failures where no HTTP response arrived
func classifyError(err error) Classification {
	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{
			Kind:      models.ErrorNetwork,
			Retryable: true,
			Message:   "request timed out",
			Suggestions: []string{
				"Check your network connection",
				"Increase the validation timeout",
				"Retry in a few seconds",
			},
		}
	}

	if errors.Is(err, context.Canceled) {
		return Classification{
			Kind:      models.ErrorNetwork,
			Retryable: false,
			Message:   "request canceled",
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		msg := "network error"
		if netErr.Timeout() {
			msg = "request timed out"
		}
		return Classification{
			Kind:      models.ErrorNetwork,
			Retryable: true,
			Message:   msg,
			Suggestions: []string{
				"Check your network connection",
				"Verify the provider endpoint is reachable",
				"Retry in a few seconds",
			},
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Classification{
			Kind:      models.ErrorNetwork,
			Retryable: true,
			Message:   "DNS resolution failed: " + dnsErr.Name,
			Suggestions: []string{
				"Check your DNS configuration",
				"Verify the provider endpoint hostname",
			},
		}
	}

	return Classification{
		Kind:      models.ErrorUnknown,
		Retryable: false,
		Message:   err.Error(),
		Suggestions: []string{
			"Retry the request; report the issue if it persists",
		},
	}
}

// ClassifyStatus maps an HTTP status code into the taxonomy
func ClassifyStatus(status int) Classification {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Classification{
			Kind:      models.ErrorAuthInvalid,
			Retryable: false,
			Message:   "the key was rejected by the provider",
			Suggestions: []string{
				"Verify the key was copied completely",
				"Check whether the key was revoked or expired",
				"Generate a new key in the provider dashboard",
			},
		}
	case status == http.StatusTooManyRequests:
		return Classification{
			Kind:      models.ErrorRateLimited,
			Retryable: true,
			Message:   "the provider is rate limiting requests",
			Suggestions: []string{
				"Wait for the rate limit window to reset",
				"Reduce validation concurrency",
				"Check your provider plan's rate limits",
			},
		}
	case status >= 500:
		return Classification{
			Kind:      models.ErrorServerError,
			Retryable: true,
			Message:   "the provider returned a server error",
			Suggestions: []string{
				"Retry in a few seconds",
				"Check the provider status page",
			},
		}
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return Classification{
			Kind:      models.ErrorConfiguration,
			Retryable: false,
			Message:   "the validation request was malformed",
			Suggestions: []string{
				"Check the provider endpoint configuration",
				"Verify the provider id is correct",
			},
		}
	case status >= 200 && status < 300:
		return Classification{Kind: models.ErrorNone}
	default:
		return Classification{
			Kind:      models.ErrorUnknown,
			Retryable: false,
			Message:   "unexpected provider response",
			Suggestions: []string{
				"Retry the request; report the issue if it persists",
			},
		}
	}
}

// Policy bounds the recovery loop for retryable failures
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns the recovery policy used when none is configured
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Delay returns the exponential backoff delay with jitter for an
// attempt, 1-based.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay * time.Duration(1<<uint(attempt-1))
	delay += time.Duration(rand.Int63n(int64(p.BaseDelay) / 2))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
