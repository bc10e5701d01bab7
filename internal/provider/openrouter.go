package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"keywarden-go/internal/classify"
	"keywarden-go/internal/models"
	"keywarden-go/internal/pattern"
)

// OpenRouterPlugin validates OpenRouter API keys
type OpenRouterPlugin struct {
	baseURL string
	client  *http.Client
	spec    pattern.KeySpec
}

// openRouterKeyResponse represents the key introspection response
type openRouterKeyResponse struct {
	Data struct {
		Label      string   `json:"label"`
		Usage      float64  `json:"usage"`
		Limit      *float64 `json:"limit"`
		IsFreeTier bool     `json:"is_free_tier"`
	} `json:"data"`
	Error *openAIError `json:"error,omitempty"`
}

// NewOpenRouterPlugin creates a new OpenRouter plugin
func NewOpenRouterPlugin(cfg Config) *OpenRouterPlugin {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai"
	}

	return &OpenRouterPlugin{
		baseURL: baseURL,
		client:  cfg.httpClient(),
		spec:    pattern.NewKeySpec("sk-or-", 35, "A-Za-z0-9"),
	}
}

// ID returns the provider id
func (p *OpenRouterPlugin) ID() string {
	return "openrouter"
}

// Name returns the provider display name
func (p *OpenRouterPlugin) Name() string {
	return "OpenRouter"
}

// Spec returns the key format spec
func (p *OpenRouterPlugin) Spec() pattern.KeySpec {
	return p.spec
}

// ValidatePattern checks the key format offline
func (p *OpenRouterPlugin) ValidatePattern(key string) models.PatternResult {
	return pattern.Validate(key, p.spec)
}

// ValidateLive confirms the key authenticates via the key introspection
// endpoint, which costs no tokens.
func (p *OpenRouterPlugin) ValidateLive(ctx context.Context, key string) (models.ValidationResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/api/v1/auth/key", nil)
	if err != nil {
		return models.ValidationResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.client.Do(req)
	if err != nil {
		return models.ValidationResult{}, err
	}
	defer resp.Body.Close()

	result := p.parseResponse(resp)
	result.Elapsed = time.Since(start)
	return result, nil
}

// parseResponse maps the HTTP response to a standardized result
func (p *OpenRouterPlugin) parseResponse(resp *http.Response) models.ValidationResult {
	result := models.ValidationResult{
		Provider:   p.ID(),
		HTTPStatus: resp.StatusCode,
	}

	var body openRouterKeyResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode == http.StatusOK {
		result.Valid = true
		metadata := map[string]interface{}{
			"label":        body.Data.Label,
			"usage":        body.Data.Usage,
			"is_free_tier": body.Data.IsFreeTier,
		}
		if body.Data.Limit != nil {
			metadata["limit"] = *body.Data.Limit
		}
		if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
			metadata["rate_limit_remaining"] = remaining
		}
		result.Metadata = metadata
		return result
	}

	c := classify.ClassifyStatus(resp.StatusCode)
	result.ErrorKind = c.Kind
	result.Message = c.Message
	result.Suggestions = c.Suggestions
	if body.Error != nil && body.Error.Message != "" {
		result.Message = body.Error.Message
	}
	if secs, ok := retryAfterSeconds(resp); ok {
		result.Metadata = map[string]interface{}{"retry_after_seconds": secs}
	}
	return result
}

// RateLimitDefaults returns the admission defaults for OpenRouter
func (p *OpenRouterPlugin) RateLimitDefaults() models.RateLimitConfig {
	return models.RateLimitConfig{
		RequestsPerMinute: 30,
		RequestsPerHour:   600,
		Burst:             5,
		BackoffBase:       500 * time.Millisecond,
		BackoffMax:        30 * time.Second,
		Exponential:       true,
	}
}
