package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"keywarden-go/internal/models"
)

func validOpenAIKey() string {
	return "sk-" + strings.Repeat("a", 48)
}

func validAnthropicKey() string {
	return "sk-ant-" + strings.Repeat("b", 60)
}

func validOpenRouterKey() string {
	return "sk-or-" + strings.Repeat("c", 29)
}

func validGeminiKey() string {
	return "AIza" + strings.Repeat("d", 35)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(NewOpenAIPlugin(Config{})); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p, ok := reg.Get("openai")
	if !ok {
		t.Fatal("expected openai plugin to be registered")
	}
	if p.ID() != "openai" {
		t.Errorf("expected id openai, got %s", p.ID())
	}

	if err := reg.Register(NewOpenAIPlugin(Config{})); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestDefaultRegistryProviders(t *testing.T) {
	reg := NewDefaultRegistry()
	want := []string{"anthropic", "gemini", "openai", "openrouter"}

	got := reg.IDs()
	if len(got) != len(want) {
		t.Fatalf("expected %d providers, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i] != id {
			t.Errorf("expected provider %s at position %d, got %s", id, i, got[i])
		}
	}
}

func TestOpenAIValidateLiveSuccess(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4"},{"id":"gpt-3.5-turbo"}]}`))
	}))
	defer server.Close()

	p := NewOpenAIPlugin(Config{BaseURL: server.URL})
	key := validOpenAIKey()

	result, err := p.ValidateLive(context.Background(), key)
	if err != nil {
		t.Fatalf("ValidateLive failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid result, got kind %s: %s", result.ErrorKind, result.Message)
	}
	if result.HTTPStatus != 200 {
		t.Errorf("expected status 200, got %d", result.HTTPStatus)
	}
	if gotAuth != "Bearer "+key {
		t.Errorf("unexpected authorization header: %s", gotAuth)
	}
	if count, ok := result.Metadata["model_count"].(int); !ok || count != 2 {
		t.Errorf("expected model_count 2, got %v", result.Metadata["model_count"])
	}
}

func TestOpenAIValidateLiveUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	p := NewOpenAIPlugin(Config{BaseURL: server.URL})
	result, err := p.ValidateLive(context.Background(), validOpenAIKey())
	if err != nil {
		t.Fatalf("ValidateLive failed: %v", err)
	}
	if result.Valid {
		t.Error("expected invalid result")
	}
	if result.ErrorKind != models.ErrorAuthInvalid {
		t.Errorf("expected AUTH_INVALID, got %s", result.ErrorKind)
	}
	if !strings.Contains(result.Message, "Incorrect API key") {
		t.Errorf("expected provider message to surface, got %q", result.Message)
	}
	if result.Retryable() {
		t.Error("auth failure must not be retryable")
	}
}

func TestOpenAIValidateLiveRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	p := NewOpenAIPlugin(Config{BaseURL: server.URL})
	result, err := p.ValidateLive(context.Background(), validOpenAIKey())
	if err != nil {
		t.Fatalf("ValidateLive failed: %v", err)
	}
	if result.ErrorKind != models.ErrorRateLimited {
		t.Errorf("expected RATE_LIMITED, got %s", result.ErrorKind)
	}
	if !result.Retryable() {
		t.Error("rate limit must be retryable")
	}
}

func TestOpenAIValidateLiveServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewOpenAIPlugin(Config{BaseURL: server.URL})
	result, err := p.ValidateLive(context.Background(), validOpenAIKey())
	if err != nil {
		t.Fatalf("ValidateLive failed: %v", err)
	}
	if result.ErrorKind != models.ErrorServerError {
		t.Errorf("expected SERVER_ERROR, got %s", result.ErrorKind)
	}
}

func TestAnthropicValidateLiveHeaders(t *testing.T) {
	var gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Write([]byte(`{"data":[{"id":"claude-3-5-sonnet-20241022"}],"has_more":false}`))
	}))
	defer server.Close()

	p := NewAnthropicPlugin(Config{BaseURL: server.URL})
	key := validAnthropicKey()

	result, err := p.ValidateLive(context.Background(), key)
	if err != nil {
		t.Fatalf("ValidateLive failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid result, got %s", result.ErrorKind)
	}
	if gotKey != key {
		t.Error("expected key in x-api-key header")
	}
	if gotVersion == "" {
		t.Error("expected anthropic-version header to be set")
	}
}

func TestAnthropicPatternAcceptsRangedLengths(t *testing.T) {
	p := NewAnthropicPlugin(Config{})

	short := "sk-ant-" + strings.Repeat("a", 33)
	long := "sk-ant-" + strings.Repeat("a", 113)
	tooShort := "sk-ant-" + strings.Repeat("a", 10)

	if r := p.ValidatePattern(short); !r.Valid {
		t.Errorf("expected 40-char key to pass, got %s", r.ErrorKind)
	}
	if r := p.ValidatePattern(long); !r.Valid {
		t.Errorf("expected 120-char key to pass, got %s", r.ErrorKind)
	}
	if r := p.ValidatePattern(tooShort); r.ErrorKind != models.ErrorInvalidLength {
		t.Errorf("expected INVALID_LENGTH, got %s", r.ErrorKind)
	}
}

func TestOpenRouterValidateLiveIntrospection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/key" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("X-RateLimit-Remaining", "57")
		w.Write([]byte(`{"data":{"label":"sk-or-...xyz","usage":1.25,"limit":10,"is_free_tier":false}}`))
	}))
	defer server.Close()

	p := NewOpenRouterPlugin(Config{BaseURL: server.URL})
	result, err := p.ValidateLive(context.Background(), validOpenRouterKey())
	if err != nil {
		t.Fatalf("ValidateLive failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got %s: %s", result.ErrorKind, result.Message)
	}
	if result.Metadata["label"] != "sk-or-...xyz" {
		t.Errorf("expected label metadata, got %v", result.Metadata["label"])
	}
}

func TestValidateLiveContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	p := NewOpenAIPlugin(Config{BaseURL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ValidateLive(ctx, validOpenAIKey())
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestPatternRejectionPerProvider(t *testing.T) {
	reg := NewDefaultRegistry()
	cases := []struct {
		provider string
		key      string
		kind     models.ErrorKind
	}{
		{"openai", "pk-" + strings.Repeat("a", 48), models.ErrorInvalidPrefix},
		{"openai", "sk-" + strings.Repeat("a", 10), models.ErrorInvalidLength},
		{"openai", "sk-" + strings.Repeat("a", 47) + "!", models.ErrorInvalidCharacters},
		{"gemini", "BIza" + strings.Repeat("d", 35), models.ErrorInvalidPrefix},
		{"gemini", "AIza" + strings.Repeat("d", 5), models.ErrorInvalidLength},
		{"openrouter", "sk-" + strings.Repeat("c", 32), models.ErrorInvalidPrefix},
	}

	for _, tc := range cases {
		p, ok := reg.Get(tc.provider)
		if !ok {
			t.Fatalf("provider %s not registered", tc.provider)
		}
		r := p.ValidatePattern(tc.key)
		if r.Valid {
			t.Errorf("%s: expected rejection for %q", tc.provider, tc.key)
			continue
		}
		if r.ErrorKind != tc.kind {
			t.Errorf("%s: expected %s, got %s", tc.provider, tc.kind, r.ErrorKind)
		}
	}
}

func TestGeminiStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&googleapi.Error{Code: 401, Message: "invalid key"}, 401},
		{&googleapi.Error{Code: 429, Message: "quota"}, 429},
		{errString("googleapi: Error 400: API key not valid. Please pass a valid API key."), 401},
		{errString("rpc error: code = Unavailable desc = transient"), 500},
		{errString("connection refused"), 0},
	}

	for _, tc := range cases {
		if got := geminiStatus(tc.err); got != tc.status {
			t.Errorf("geminiStatus(%v) = %d, expected %d", tc.err, got, tc.status)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestRateLimitDefaultsSane(t *testing.T) {
	for _, p := range NewDefaultRegistry().All() {
		cfg := p.RateLimitDefaults()
		if cfg.RequestsPerMinute <= 0 {
			t.Errorf("%s: expected positive per-minute limit", p.ID())
		}
		if cfg.RequestsPerHour < cfg.RequestsPerMinute {
			t.Errorf("%s: hourly limit below minute limit", p.ID())
		}
		if cfg.BackoffBase <= 0 || cfg.BackoffMax < cfg.BackoffBase {
			t.Errorf("%s: backoff bounds invalid", p.ID())
		}
	}
}
