package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"keywarden-go/internal/config"
	"keywarden-go/internal/logger"
	"keywarden-go/internal/models"
	"keywarden-go/internal/orchestrator"
)

// APIServer exposes the validation pipeline over HTTP
type APIServer struct {
	config       *config.Config
	orchestrator *orchestrator.Orchestrator
	log          *logger.Logger
	httpServer   *http.Server
	jwtSecret    string
}

// APIResponse is the envelope for every endpoint
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidateRequest is the body of a single validation call
type ValidateRequest struct {
	Provider       string `json:"provider"`
	Key            string `json:"key"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	BypassCache    bool   `json:"bypass_cache,omitempty"`
	Strategy       string `json:"strategy,omitempty"`
}

// BatchValidateRequest is the body of a batch validation call
type BatchValidateRequest struct {
	Requests    []ValidateRequest `json:"requests"`
	Concurrency int               `json:"concurrency,omitempty"`
}

// ProviderInfo describes one registered provider
type ProviderInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	KeyPrefix string `json:"key_prefix"`
	MinLength int    `json:"min_length"`
	MaxLength int    `json:"max_length"`
}

// NewAPIServer creates an API server
func NewAPIServer(cfg *config.Config, orch *orchestrator.Orchestrator, log *logger.Logger) *APIServer {
	jwtSecret := cfg.APIAuthKey
	if jwtSecret == "" {
		jwtSecret = "keywarden-default-secret"
	}

	return &APIServer{
		config:       cfg,
		orchestrator: orch,
		log:          log,
		jwtSecret:    jwtSecret,
	}
}

// Handler builds the full middleware-wrapped handler
func (s *APIServer) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/auth", s.handleAuth).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/health", s.handleHealthCheck).Methods(http.MethodGet)

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(s.authMiddleware)
	protected.HandleFunc("/validate", s.handleValidate).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/validate/batch", s.handleValidateBatch).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/providers", s.handleGetProviders).Methods(http.MethodGet)
	protected.HandleFunc("/stats", s.handleGetStats).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	return cors(router)
}

// Start starts the API server and blocks until it stops
func (s *APIServer) Start() error {
	s.httpServer = &http.Server{
		Addr:    ":" + strconv.Itoa(s.config.APIPort),
		Handler: s.Handler(),
	}

	s.log.Info("API server starting", map[string]interface{}{"port": s.config.APIPort})
	return s.httpServer.ListenAndServe()
}

// Stop shuts the API server down gracefully
func (s *APIServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// handleValidate validates a single key
func (s *APIServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Provider == "" || req.Key == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "Both provider and key are required")
		return
	}

	result, err := s.orchestrator.Validate(r.Context(), req.Provider, req.Key, req.options())
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Validation failed")
		return
	}

	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: "Validation completed",
		Data:    result,
	})
}

// handleValidateBatch validates a batch of keys
func (s *APIServer) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req BatchValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Requests) == 0 {
		s.writeErrorResponse(w, http.StatusBadRequest, "At least one request is required")
		return
	}
	if len(req.Requests) > 100 {
		s.writeErrorResponse(w, http.StatusBadRequest, "Batch size exceeds the limit of 100")
		return
	}

	batch := make([]models.BatchRequest, len(req.Requests))
	for i, item := range req.Requests {
		opts := item.options()
		batch[i] = models.BatchRequest{
			Provider: item.Provider,
			Key:      item.Key,
			Options:  &opts,
		}
	}

	results := s.orchestrator.ValidateBatch(r.Context(), batch, models.BatchOptions{
		Concurrency: req.Concurrency,
	})

	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: fmt.Sprintf("Batch of %d completed", len(results)),
		Data:    results,
	})
}

// handleGetProviders lists the registered providers
func (s *APIServer) handleGetProviders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	providers := []ProviderInfo{}
	for _, p := range s.orchestrator.Registry().All() {
		spec := p.Spec()
		providers = append(providers, ProviderInfo{
			ID:        p.ID(),
			Name:      p.Name(),
			KeyPrefix: spec.Prefix,
			MinLength: spec.MinLen,
			MaxLength: spec.MaxLen,
		})
	}

	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: "Providers retrieved successfully",
		Data:    providers,
	})
}

// handleGetStats reports validation metrics
func (s *APIServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	m := s.orchestrator.Metrics().GetMetrics()
	stats := map[string]interface{}{
		"total_validations":     m.TotalValidations,
		"valid_keys":            m.ValidKeys,
		"invalid_keys":          m.InvalidKeys,
		"rate_limited_keys":     m.RateLimitedKeys,
		"network_failures":      m.NetworkFailures,
		"retries_performed":     m.RetriesPerformed,
		"pattern_rejections":    m.PatternRejections,
		"cache_hit_rate":        m.CacheHitRate,
		"avg_response_time_ms":  m.AverageResponseTime,
		"providers":             m.ProviderMetrics,
		"uptime_seconds":        int64(s.orchestrator.Metrics().GetUptime().Seconds()),
	}

	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: "Stats retrieved successfully",
		Data:    stats,
	})
}

// handleHealthCheck reports liveness
func (s *APIServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: "API server is running",
		Data: map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		},
	})
}

// handleAuth exchanges the configured auth key for a JWT
func (s *APIServer) handleAuth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.config.APIAuthKey == "" {
		json.NewEncoder(w).Encode(APIResponse{
			Success: true,
			Message: "Authentication disabled",
			Data: map[string]string{
				"token":      "no-auth-required",
				"expires_in": "0",
			},
		})
		return
	}

	var authRequest struct {
		AuthKey string `json:"auth_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&authRequest); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if authRequest.AuthKey != s.config.APIAuthKey {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid authentication key")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: "Authentication successful",
		Data: map[string]string{
			"token":      tokenString,
			"expires_in": "86400",
		},
	})
}

// authMiddleware verifies the bearer token on protected routes
func (s *APIServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIAuthKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !parsedToken.Valid {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeErrorResponse writes an error envelope
func (s *APIServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Message: message,
	})
}

func (vr ValidateRequest) options() models.Options {
	return models.Options{
		Timeout:     time.Duration(vr.TimeoutSeconds) * time.Second,
		BypassCache: vr.BypassCache,
		Strategy:    models.Strategy(vr.Strategy),
	}
}
