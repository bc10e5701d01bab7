package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keywarden-go/internal/cache"
	"keywarden-go/internal/classify"
	"keywarden-go/internal/logger"
	"keywarden-go/internal/metrics"
	"keywarden-go/internal/models"
	"keywarden-go/internal/provider"
	"keywarden-go/internal/ratelimit"
	"keywarden-go/internal/secret"
)

// Orchestrator drives a validation request through its stages: offline
// pattern check, cache lookup, rate-limit admission, live probe, and
// classification with recovery. Results for a given key and provider
// are deterministic modulo provider-side state.
type Orchestrator struct {
	registry *provider.Registry
	limiter  *ratelimit.Limiter
	cache    *cache.ResultCache
	metrics  *metrics.SystemMetrics
	log      *logger.Logger
	policy   classify.Policy
	timeout  time.Duration
}

// Deps holds the orchestrator's collaborators. Zero fields get
// sensible defaults, except Cache and Logger which stay optional.
type Deps struct {
	Registry       *provider.Registry
	Limiter        *ratelimit.Limiter
	Cache          *cache.ResultCache
	Metrics        *metrics.SystemMetrics
	Logger         *logger.Logger
	Policy         classify.Policy
	DefaultTimeout time.Duration
}

// New creates an orchestrator and seeds the rate limiter with each
// registered provider's defaults. Per-provider overrides can be
// applied afterwards through the limiter.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		registry: deps.Registry,
		limiter:  deps.Limiter,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		policy:   deps.Policy,
		timeout:  deps.DefaultTimeout,
	}
	if o.registry == nil {
		o.registry = provider.NewDefaultRegistry()
	}
	if o.limiter == nil {
		o.limiter = ratelimit.NewLimiter()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewSystemMetrics()
	}
	if o.policy.MaxAttempts == 0 {
		o.policy = classify.DefaultPolicy()
	}
	if o.timeout <= 0 {
		o.timeout = 30 * time.Second
	}

	for _, p := range o.registry.All() {
		o.limiter.Configure(p.ID(), p.RateLimitDefaults())
	}
	return o
}

// Registry exposes the provider registry for enumeration
func (o *Orchestrator) Registry() *provider.Registry {
	return o.registry
}

// Limiter exposes the rate limiter for configuration overrides
func (o *Orchestrator) Limiter() *ratelimit.Limiter {
	return o.limiter
}

// Metrics exposes the metrics collector
func (o *Orchestrator) Metrics() *metrics.SystemMetrics {
	return o.metrics
}

// ValidatePattern runs only the offline format check
func (o *Orchestrator) ValidatePattern(providerID, key string) (models.PatternResult, error) {
	p, ok := o.registry.Get(providerID)
	if !ok {
		return models.PatternResult{}, fmt.Errorf("unknown provider %q", providerID)
	}
	return p.ValidatePattern(key), nil
}

// Validate runs the full validation pipeline for one key. The raw key
// is held in a scoped secret and scrubbed before this function
// returns, including on panic.
func (o *Orchestrator) Validate(ctx context.Context, providerID, key string, opts models.Options) (models.ValidationResult, error) {
	start := time.Now()

	p, ok := o.registry.Get(providerID)
	if !ok {
		result := models.ValidationResult{
			Provider:  providerID,
			ErrorKind: models.ErrorConfiguration,
			Message:   fmt.Sprintf("unknown provider %q", providerID),
			Suggestions: []string{
				"check the provider id against the registered providers",
			},
			Elapsed: time.Since(start),
		}
		return result, nil
	}

	var result models.ValidationResult
	err := secret.WithKey(key, func(s *secret.Secret) error {
		result = o.validate(ctx, p, s, opts, start)
		return nil
	})
	return result, err
}

func (o *Orchestrator) validate(ctx context.Context, p provider.Plugin, s *secret.Secret, opts models.Options, start time.Time) models.ValidationResult {
	pr := p.ValidatePattern(s.Reveal())
	if !pr.Valid {
		result := models.ValidationResult{
			Provider:  p.ID(),
			ErrorKind: pr.ErrorKind,
			Message:   pr.Message,
			Elapsed:   time.Since(start),
		}
		o.metrics.RecordPatternRejection(p.ID())
		if o.log != nil {
			o.log.LogPatternRejection(p.ID(), s.Reveal(), pr)
		}
		return result
	}

	if opts.Strategy == models.StrategyPatternOnly {
		return models.ValidationResult{
			Valid:    true,
			Provider: p.ID(),
			Metadata: map[string]interface{}{"stage": "pattern"},
			Elapsed:  time.Since(start),
		}
	}

	hash := s.CacheHash(p.ID())
	if o.cache != nil && !opts.BypassCache {
		if cached, ok := o.cache.Get(hash); ok {
			cached.FromCache = true
			cached.Elapsed = time.Since(start)
			o.metrics.RecordCacheHit()
			if o.log != nil {
				o.log.LogValidation(p.ID(), s.Reveal(), &cached)
			}
			return cached
		}
		o.metrics.RecordCacheMiss()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := o.probe(probeCtx, p, s)
	result.Provider = p.ID()
	result.Elapsed = time.Since(start)

	if o.cache != nil {
		o.cache.Put(hash, result)
	}
	o.metrics.RecordValidation(p.ID(), result)
	if o.log != nil {
		o.log.LogValidation(p.ID(), s.Reveal(), &result)
	}
	return result
}

// probe runs the live check with classification-driven recovery.
// Transient failures retry with backoff; rate-limit rejections feed
// the provider's reset hint back into the limiter and wait through
// it; terminal outcomes return immediately.
func (o *Orchestrator) probe(ctx context.Context, p provider.Plugin, s *secret.Secret) models.ValidationResult {
	var result models.ValidationResult

	for attempt := 0; ; attempt++ {
		if err := o.limiter.AwaitSlot(ctx, p.ID()); err != nil {
			if errors.Is(err, ratelimit.ErrResetTooFar) {
				return models.ValidationResult{
					ErrorKind: models.ErrorRateLimited,
					Message:   "provider rate limit reset exceeds the wait ceiling",
					Suggestions: []string{
						"retry after the provider's quota window resets",
						"reduce the request rate for this provider",
					},
				}
			}
			c := classify.Classify(err, 0)
			return models.ValidationResult{
				ErrorKind:   c.Kind,
				Message:     c.Message,
				Suggestions: c.Suggestions,
			}
		}

		// The dispatch is charged before the call so that requests
		// that time out still count against the window.
		o.limiter.RecordDispatch(p.ID())

		live, err := p.ValidateLive(ctx, s.Reveal())
		if err != nil {
			c := classify.Classify(err, 0)
			result = models.ValidationResult{
				ErrorKind:   c.Kind,
				Message:     c.Message,
				Suggestions: c.Suggestions,
			}
			if c.Retryable && attempt+1 < o.policy.MaxAttempts {
				o.metrics.RecordRetry(p.ID())
				if sleepErr := sleep(ctx, o.policy.Delay(attempt)); sleepErr != nil {
					return result
				}
				continue
			}
			return result
		}

		result = live
		if result.ErrorKind == models.ErrorRateLimited {
			if secs, ok := result.Metadata["retry_after_seconds"].(int); ok {
				o.limiter.SetResetHint(p.ID(), time.Now().Add(time.Duration(secs)*time.Second))
			}
		}

		if result.Retryable() && attempt+1 < o.policy.MaxAttempts {
			o.metrics.RecordRetry(p.ID())
			if result.ErrorKind != models.ErrorRateLimited {
				// Rate-limited retries wait inside AwaitSlot instead
				if sleepErr := sleep(ctx, o.policy.Delay(attempt)); sleepErr != nil {
					return result
				}
			}
			continue
		}
		return result
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
