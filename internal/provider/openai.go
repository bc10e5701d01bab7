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

// OpenAIPlugin validates OpenAI API keys
type OpenAIPlugin struct {
	baseURL string
	client  *http.Client
	spec    pattern.KeySpec
}

// openAIModelsResponse represents the model list response
type openAIModelsResponse struct {
	Object string `json:"object"`
	Data   []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *openAIError `json:"error,omitempty"`
}

// openAIError represents an API error payload
type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIPlugin creates a new OpenAI plugin
func NewOpenAIPlugin(cfg Config) *OpenAIPlugin {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	return &OpenAIPlugin{
		baseURL: baseURL,
		client:  cfg.httpClient(),
		spec:    pattern.NewKeySpec("sk-", 51, "A-Za-z0-9"),
	}
}

// ID returns the provider id
func (p *OpenAIPlugin) ID() string {
	return "openai"
}

// Name returns the provider display name
func (p *OpenAIPlugin) Name() string {
	return "OpenAI"
}

// Spec returns the key format spec
func (p *OpenAIPlugin) Spec() pattern.KeySpec {
	return p.spec
}

// ValidatePattern checks the key format offline
func (p *OpenAIPlugin) ValidatePattern(key string) models.PatternResult {
	return pattern.Validate(key, p.spec)
}

// ValidateLive confirms the key authenticates by listing models, the
// cheapest authenticated read the API offers.
func (p *OpenAIPlugin) ValidateLive(ctx context.Context, key string) (models.ValidationResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/v1/models", nil)
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
func (p *OpenAIPlugin) parseResponse(resp *http.Response) models.ValidationResult {
	result := models.ValidationResult{
		Provider:   p.ID(),
		HTTPStatus: resp.StatusCode,
	}

	var body openAIModelsResponse
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

// RateLimitDefaults returns the admission defaults for OpenAI
func (p *OpenAIPlugin) RateLimitDefaults() models.RateLimitConfig {
	return models.RateLimitConfig{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		Burst:             10,
		BackoffBase:       500 * time.Millisecond,
		BackoffMax:        30 * time.Second,
		Exponential:       true,
	}
}
