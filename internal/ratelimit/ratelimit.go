package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"keywarden-go/internal/models"
)

// ErrResetTooFar is returned when a provider's stated reset time is too
// far away to be worth waiting for; the caller surfaces a terminal
// RATE_LIMITED result instead.
var ErrResetTooFar = fmt.Errorf("provider reset time exceeds maximum wait")

// maxResetWait bounds how long AwaitSlot will honor a provider reset hint
const maxResetWait = 5 * time.Minute

// window tracks admitted dispatch timestamps for one provider
type window struct {
	timestamps []time.Time
	resetHint  time.Time
}

// Limiter implements per-provider sliding-window admission control with
// backoff. All state is process-local and guarded by a single mutex;
// callers only mutate it through the documented operations.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	configs map[string]models.RateLimitConfig

	// Window spans; fixed in production, shortened by tests.
	minuteSpan time.Duration
	hourSpan   time.Duration
}

// NewLimiter creates a limiter with no provider configurations
func NewLimiter() *Limiter {
	return &Limiter{
		windows:    make(map[string]*window),
		configs:    make(map[string]models.RateLimitConfig),
		minuteSpan: time.Minute,
		hourSpan:   time.Hour,
	}
}

// Configure sets the admission ceilings for a provider, replacing any
// previous configuration.
func (l *Limiter) Configure(provider string, cfg models.RateLimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[provider] = cfg
}

// CheckAdmission reports whether a new request may proceed now under the
// provider's per-minute and per-hour ceilings.
func (l *Limiter) CheckAdmission(provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.admissible(provider, time.Now())
}

// RecordDispatch charges the provider's window for a request that was
// actually sent. Timed-out requests are still recorded: the provider
// most likely received them.
func (l *Limiter) RecordDispatch(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.window(provider)
	w.timestamps = append(w.timestamps, time.Now())
}

// SetResetHint records a provider-stated rate-limit reset time (from a
// 429 response) so the next AwaitSlot honors it instead of guessing.
func (l *Limiter) SetResetHint(provider string, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window(provider).resetHint = resetAt
}

// AwaitSlot blocks until admission succeeds, backing off between failed
// checks. Returns ErrResetTooFar when the provider's stated reset time
// exceeds the maximum wait, or the context error on cancellation.
func (l *Limiter) AwaitSlot(ctx context.Context, provider string) error {
	attempt := 0

	for {
		l.mu.Lock()
		now := time.Now()
		w := l.window(provider)

		if w.resetHint.After(now) {
			until := w.resetHint.Sub(now)
			if until > maxResetWait {
				l.mu.Unlock()
				return ErrResetTooFar
			}
			w.resetHint = time.Time{}
			l.mu.Unlock()
			if err := sleep(ctx, until); err != nil {
				return err
			}
			continue
		}

		if l.admissible(provider, now) {
			l.mu.Unlock()
			return nil
		}
		cfg := l.configs[provider]
		l.mu.Unlock()

		attempt++
		if err := sleep(ctx, backoffDelay(cfg, attempt)); err != nil {
			return err
		}
	}
}

// admissible checks the ceilings; caller holds the lock
func (l *Limiter) admissible(provider string, now time.Time) bool {
	cfg, ok := l.configs[provider]
	if !ok {
		// Unconfigured providers are unconstrained
		return true
	}

	w := l.window(provider)
	l.prune(w, now)

	var lastMinute, lastHour, lastSecond int
	for _, ts := range w.timestamps {
		if now.Sub(ts) < l.minuteSpan {
			lastMinute++
		}
		if now.Sub(ts) < l.hourSpan {
			lastHour++
		}
		if now.Sub(ts) < time.Second {
			lastSecond++
		}
	}

	if cfg.RequestsPerMinute > 0 && lastMinute >= cfg.RequestsPerMinute {
		return false
	}
	if cfg.RequestsPerHour > 0 && lastHour >= cfg.RequestsPerHour {
		return false
	}
	if cfg.Burst > 0 && lastSecond >= cfg.Burst {
		return false
	}
	return true
}

// window returns the provider's window, creating it on first use;
// caller holds the lock
func (l *Limiter) window(provider string) *window {
	w, ok := l.windows[provider]
	if !ok {
		w = &window{}
		l.windows[provider] = w
	}
	return w
}

// prune drops timestamps older than the widest window; caller holds the lock
func (l *Limiter) prune(w *window, now time.Time) {
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if now.Sub(ts) < l.hourSpan {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept
}

// backoffDelay computes the wait before the next admission check
func backoffDelay(cfg models.RateLimitConfig, attempt int) time.Duration {
	base := cfg.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := cfg.BackoffMax
	if max <= 0 {
		max = 30 * time.Second
	}

	var delay time.Duration
	if cfg.Exponential {
		shift := uint(attempt - 1)
		if shift > 20 {
			shift = 20
		}
		delay = base * time.Duration(1<<shift)
	} else {
		delay = base * time.Duration(attempt)
	}

	// Small jitter so concurrent waiters don't wake in lockstep
	delay += time.Duration(rand.Int63n(int64(base) / 2))
	if delay > max {
		delay = max
	}
	return delay
}

// sleep waits for d or until the context is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
