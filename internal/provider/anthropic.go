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

// anthropicVersion is the API version header the endpoint requires
const anthropicVersion = "2023-06-01"

// AnthropicPlugin validates Anthropic API keys
type AnthropicPlugin struct {
	baseURL string
	client  *http.Client
	spec    pattern.KeySpec
}

// anthropicModelsResponse represents the model list response
type anthropicModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *anthropicError `json:"error,omitempty"`
}

// anthropicError represents an API error payload
type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAnthropicPlugin creates a new Anthropic plugin
func NewAnthropicPlugin(cfg Config) *AnthropicPlugin {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicPlugin{
		baseURL: baseURL,
		client:  cfg.httpClient(),
		spec:    pattern.NewRangedKeySpec("sk-ant-", 40, 120, "A-Za-z0-9_\\-"),
	}
}

// ID returns the provider id
func (p *AnthropicPlugin) ID() string {
	return "anthropic"
}

// Name returns the provider display name
func (p *AnthropicPlugin) Name() string {
	return "Anthropic"
}

// Spec returns the key format spec
func (p *AnthropicPlugin) Spec() pattern.KeySpec {
	return p.spec
}

// ValidatePattern checks the key format offline
func (p *AnthropicPlugin) ValidatePattern(key string) models.PatternResult {
	return pattern.Validate(key, p.spec)
}

// ValidateLive confirms the key authenticates. Auth goes in the
// x-api-key header, not a bearer token.
func (p *AnthropicPlugin) ValidateLive(ctx context.Context, key string) (models.ValidationResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/v1/models?limit=1", nil)
	if err != nil {
		return models.ValidationResult{}, err
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", anthropicVersion)

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
func (p *AnthropicPlugin) parseResponse(resp *http.Response) models.ValidationResult {
	result := models.ValidationResult{
		Provider:   p.ID(),
		HTTPStatus: resp.StatusCode,
	}

	var body anthropicModelsResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode == http.StatusOK {
		result.Valid = true
		result.Metadata = map[string]interface{}{
			"model_count": len(body.Data),
		}
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

// RateLimitDefaults returns the admission defaults for Anthropic
func (p *AnthropicPlugin) RateLimitDefaults() models.RateLimitConfig {
	return models.RateLimitConfig{
		RequestsPerMinute: 50,
		RequestsPerHour:   1000,
		Burst:             5,
		BackoffBase:       500 * time.Millisecond,
		BackoffMax:        30 * time.Second,
		Exponential:       true,
	}
}
