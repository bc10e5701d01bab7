package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"keywarden-go/internal/models"
	"keywarden-go/internal/pattern"
)

// Plugin represents one provider's key format and liveness probe.
// Each concrete plugin differs only in its pattern spec, its request
// shape and auth placement, its response parsing, and its rate-limit
// defaults.
type Plugin interface {
	ID() string
	Name() string
	Spec() pattern.KeySpec
	ValidatePattern(key string) models.PatternResult
	// ValidateLive performs the minimal liveness request. A non-nil
	// error means no usable response arrived (transport failure); a
	// provider-side rejection comes back as a result with Valid=false.
	ValidateLive(ctx context.Context, key string) (models.ValidationResult, error)
	RateLimitDefaults() models.RateLimitConfig
}

// Config represents plugin construction options shared by the HTTP
// providers. The zero value uses production endpoints.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// httpClient returns the configured client or a default one
func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// retryAfterSeconds reads the Retry-After header as a delay in
// seconds. The HTTP-date form is rare on these APIs and is ignored.
func retryAfterSeconds(resp *http.Response) (int, bool) {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}

// Registry holds registered plugins keyed by provider id. It is an
// explicit instance constructed once and handed to the orchestrator;
// registration after startup is allowed for custom providers.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
	}
}

// NewDefaultRegistry creates a registry with the built-in providers
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NewOpenAIPlugin(Config{}))
	_ = r.Register(NewAnthropicPlugin(Config{}))
	_ = r.Register(NewGeminiPlugin(GeminiConfig{}))
	_ = r.Register(NewOpenRouterPlugin(Config{}))
	return r
}

// Register adds a plugin to the registry
func (r *Registry) Register(p Plugin) error {
	id := p.ID()
	if _, exists := r.plugins[id]; exists {
		return fmt.Errorf("provider %s already registered", id)
	}

	r.plugins[id] = p
	return nil
}

// Get returns a plugin by provider id
func (r *Registry) Get(id string) (Plugin, bool) {
	p, exists := r.plugins[id]
	return p, exists
}

// IDs returns all registered provider ids, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns all registered plugins
func (r *Registry) All() []Plugin {
	all := make([]Plugin, 0, len(r.plugins))
	for _, id := range r.IDs() {
		all = append(all, r.plugins[id])
	}
	return all
}
