package classify

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"keywarden-go/internal/models"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyTimeout(t *testing.T) {
	c := Classify(context.DeadlineExceeded, 0)

	if c.Kind != models.ErrorNetwork {
		t.Errorf("Expected NETWORK for a timeout, got %q", c.Kind)
	}
	if !c.Retryable {
		t.Error("Expected timeouts to be retryable")
	}
}

func TestClassifyNetError(t *testing.T) {
	var err net.Error = timeoutErr{}
	c := Classify(err, 0)

	if c.Kind != models.ErrorNetwork || !c.Retryable {
		t.Errorf("Expected retryable NETWORK, got %q retryable=%v", c.Kind, c.Retryable)
	}
}

func TestClassifyConnectionRefused(t *testing.T) {
	err := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	c := Classify(err, 0)

	if c.Kind != models.ErrorNetwork || !c.Retryable {
		t.Errorf("Expected retryable NETWORK for connection refused, got %q retryable=%v", c.Kind, c.Retryable)
	}
}

func TestClassifyUnauthorized(t *testing.T) {
	c := Classify(nil, 401)

	if c.Kind != models.ErrorAuthInvalid {
		t.Errorf("Expected AUTH_INVALID for 401, got %q", c.Kind)
	}
	if c.Retryable {
		t.Error("Expected 401 to be terminal")
	}
	if len(c.Suggestions) == 0 {
		t.Error("Expected suggestions for an auth failure")
	}
}

func TestClassifyForbidden(t *testing.T) {
	if c := Classify(nil, 403); c.Kind != models.ErrorAuthInvalid || c.Retryable {
		t.Errorf("Expected terminal AUTH_INVALID for 403, got %q retryable=%v", c.Kind, c.Retryable)
	}
}

func TestClassifyRateLimited(t *testing.T) {
	c := Classify(nil, 429)

	if c.Kind != models.ErrorRateLimited {
		t.Errorf("Expected RATE_LIMITED for 429, got %q", c.Kind)
	}
	if !c.Retryable {
		t.Error("Expected 429 to be retryable")
	}
}

func TestClassifyServerError(t *testing.T) {
	for _, status := range []int{500, 502, 503} {
		if c := Classify(nil, status); c.Kind != models.ErrorServerError || !c.Retryable {
			t.Errorf("Expected retryable SERVER_ERROR for %d, got %q retryable=%v", status, c.Kind, c.Retryable)
		}
	}
}

func TestClassifySuccess(t *testing.T) {
	if c := Classify(nil, 200); c.Kind != models.ErrorNone {
		t.Errorf("Expected no error kind for 200, got %q", c.Kind)
	}
}

func TestClassifyConfiguration(t *testing.T) {
	if c := Classify(nil, 404); c.Kind != models.ErrorConfiguration || c.Retryable {
		t.Errorf("Expected terminal CONFIGURATION for 404, got %q retryable=%v", c.Kind, c.Retryable)
	}
}

func TestPolicyDelayGrowsAndCaps(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}

	first := p.Delay(1)
	if first < 100*time.Millisecond {
		t.Errorf("Expected first delay at least the base, got %v", first)
	}

	for attempt := 1; attempt <= 10; attempt++ {
		if d := p.Delay(attempt); d > p.MaxDelay {
			t.Errorf("Delay for attempt %d exceeds cap: %v", attempt, d)
		}
	}
}
