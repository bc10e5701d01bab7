package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"keywarden-go/internal/classify"
	"keywarden-go/internal/models"
	"keywarden-go/internal/pattern"
)

// GeminiConfig represents Gemini plugin construction options
type GeminiConfig struct {
	// Endpoint overrides the API endpoint, mainly for tests
	Endpoint string
	// ClientOptions are appended to the genai client options
	ClientOptions []option.ClientOption
}

// GeminiPlugin validates Google Gemini API keys. Unlike the bearer-auth
// providers it goes through the genai SDK, which places the key as a
// query parameter.
type GeminiPlugin struct {
	cfg  GeminiConfig
	spec pattern.KeySpec
}

// NewGeminiPlugin creates a new Gemini plugin
func NewGeminiPlugin(cfg GeminiConfig) *GeminiPlugin {
	return &GeminiPlugin{
		cfg:  cfg,
		spec: pattern.NewKeySpec("AIza", 39, "A-Za-z0-9_\\-"),
	}
}

// ID returns the provider id
func (p *GeminiPlugin) ID() string {
	return "gemini"
}

// Name returns the provider display name
func (p *GeminiPlugin) Name() string {
	return "Google Gemini"
}

// Spec returns the key format spec
func (p *GeminiPlugin) Spec() pattern.KeySpec {
	return p.spec
}

// ValidatePattern checks the key format offline
func (p *GeminiPlugin) ValidatePattern(key string) models.PatternResult {
	return pattern.Validate(key, p.spec)
}

// ValidateLive confirms the key authenticates by listing models through
// the genai SDK. The client is built per call because every call
// carries its own key.
func (p *GeminiPlugin) ValidateLive(ctx context.Context, key string) (models.ValidationResult, error) {
	start := time.Now()

	opts := []option.ClientOption{option.WithAPIKey(key)}
	if p.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.Endpoint))
	}
	opts = append(opts, p.cfg.ClientOptions...)

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return models.ValidationResult{}, err
	}
	defer client.Close()

	modelCount := 0
	it := client.ListModels(ctx)
	for {
		_, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return p.mapError(err, start)
		}
		modelCount++
	}

	return models.ValidationResult{
		Valid:      true,
		Provider:   p.ID(),
		HTTPStatus: 200,
		Metadata: map[string]interface{}{
			"model_count": modelCount,
		},
		Elapsed: time.Since(start),
	}, nil
}

// mapError turns a genai SDK error into a standardized result, or
// returns a transport error for the recovery layer to classify.
func (p *GeminiPlugin) mapError(err error, start time.Time) (models.ValidationResult, error) {
	status := geminiStatus(err)
	if status == 0 {
		// No HTTP status recoverable: treat as transport failure
		return models.ValidationResult{}, err
	}

	c := classify.ClassifyStatus(status)
	result := models.ValidationResult{
		Provider:    p.ID(),
		HTTPStatus:  status,
		ErrorKind:   c.Kind,
		Message:     c.Message,
		Suggestions: c.Suggestions,
		Elapsed:     time.Since(start),
	}
	return result, nil
}

// geminiStatus extracts an HTTP status from a genai SDK error, falling
// back to matching the error text the way the API phrases it.
func geminiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "PermissionDenied"), strings.Contains(errStr, "Unauthenticated"),
		strings.Contains(errStr, "API key not valid"), strings.Contains(errStr, "API_KEY_INVALID"):
		return 401
	case strings.Contains(errStr, "TooManyRequests"), strings.Contains(errStr, "429"),
		strings.Contains(strings.ToLower(errStr), "rate limit"):
		return 429
	case strings.Contains(errStr, "Internal"), strings.Contains(errStr, "Unavailable"):
		return 500
	}
	return 0
}

// RateLimitDefaults returns the admission defaults for Gemini
func (p *GeminiPlugin) RateLimitDefaults() models.RateLimitConfig {
	return models.RateLimitConfig{
		RequestsPerMinute: 30,
		RequestsPerHour:   500,
		Burst:             5,
		BackoffBase:       500 * time.Millisecond,
		BackoffMax:        30 * time.Second,
		Exponential:       true,
	}
}
