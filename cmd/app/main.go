package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"keywarden-go/internal/api"
	"keywarden-go/internal/cache"
	"keywarden-go/internal/config"
	"keywarden-go/internal/logger"
	"keywarden-go/internal/models"
	"keywarden-go/internal/orchestrator"
	"keywarden-go/internal/provider"
	"keywarden-go/internal/ratelimit"
)

var (
	providerFlag    = flag.String("provider", "", "provider id (openai, anthropic, gemini, openrouter)")
	keyFlag         = flag.String("key", "", "API key to validate")
	keysFileFlag    = flag.String("keys-file", "", "file with one key per line, or 'provider key' pairs")
	patternOnlyFlag = flag.Bool("pattern-only", false, "skip the live probe")
	bypassCacheFlag = flag.Bool("bypass-cache", false, "skip the result cache")
	timeoutFlag     = flag.Duration("timeout", 0, "per-request timeout override")
	serveFlag       = flag.Bool("serve", false, "run the HTTP API server")
)

// KeyWarden is the application root: configuration, the wired
// validation pipeline, and the optional API server.
type KeyWarden struct {
	config       *config.Config
	logger       *logger.Logger
	orchestrator *orchestrator.Orchestrator
	apiServer    *api.APIServer
}

// NewKeyWarden wires the application from configuration
func NewKeyWarden() (*KeyWarden, error) {
	cfg := config.Load()
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("config check failed: %w", err)
	}

	log, err := logger.NewLogger(logger.LogLevel(cfg.LogLevel), cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	resultCache, err := cache.New(cfg.CacheCapacity, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, continuing with local cache only", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			resultCache = resultCache.WithRedis(redisCache)
		}
	}

	limiter := ratelimit.NewLimiter()
	orch := orchestrator.New(orchestrator.Deps{
		Registry:       provider.NewDefaultRegistry(),
		Limiter:        limiter,
		Cache:          resultCache,
		Logger:         log,
		DefaultTimeout: cfg.DefaultTimeout,
	})
	for id, override := range cfg.RateLimitOverrides {
		limiter.Configure(id, override)
	}

	kw := &KeyWarden{
		config:       cfg,
		logger:       log,
		orchestrator: orch,
	}
	if cfg.APIEnabled || *serveFlag {
		kw.apiServer = api.NewAPIServer(cfg, orch, log)
	}
	return kw, nil
}

// Run dispatches to the selected mode
func (kw *KeyWarden) Run() error {
	switch {
	case *keyFlag != "":
		return kw.runSingle()
	case *keysFileFlag != "":
		return kw.runBatch()
	case kw.apiServer != nil:
		return kw.runServer()
	default:
		flag.Usage()
		return fmt.Errorf("nothing to do: pass -key, -keys-file, or -serve")
	}
}

func (kw *KeyWarden) runSingle() error {
	if *providerFlag == "" {
		return fmt.Errorf("-provider is required with -key")
	}

	result, err := kw.orchestrator.Validate(context.Background(), *providerFlag, *keyFlag, kw.options())
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if !result.Valid {
		os.Exit(1)
	}
	return nil
}

func (kw *KeyWarden) runBatch() error {
	requests, err := kw.loadBatchFile(*keysFileFlag)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("no keys found in %s", *keysFileFlag)
	}

	results := kw.orchestrator.ValidateBatch(context.Background(), requests, models.BatchOptions{
		Concurrency: kw.config.Concurrency,
		OnProgress: func(completed, total int) {
			fmt.Fprintf(os.Stderr, "\rvalidated %d/%d", completed, total)
		},
	})
	fmt.Fprintln(os.Stderr)

	out, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(out))

	for _, r := range results {
		if !r.Result.Valid {
			os.Exit(1)
		}
	}
	return nil
}

// loadBatchFile reads one key per line. A line may carry its own
// provider id ("openai sk-..."); bare keys use the -provider flag.
func (kw *KeyWarden) loadBatchFile(path string) ([]models.BatchRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	opts := kw.options()
	var requests []models.BatchRequest

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		providerID := *providerFlag
		key := line
		if fields := strings.Fields(line); len(fields) == 2 {
			providerID = fields[0]
			key = fields[1]
		}
		if providerID == "" {
			return nil, fmt.Errorf("no provider for key line; pass -provider or prefix lines with a provider id")
		}

		requests = append(requests, models.BatchRequest{
			Provider: providerID,
			Key:      key,
			Options:  &opts,
		})
	}
	return requests, scanner.Err()
}

func (kw *KeyWarden) runServer() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- kw.apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		kw.logger.LogSystemEvent("shutdown", "signal received", map[string]interface{}{
			"signal": sig.String(),
		})
		return kw.apiServer.Stop()
	}
}

func (kw *KeyWarden) options() models.Options {
	opts := models.Options{
		BypassCache: *bypassCacheFlag,
		Timeout:     *timeoutFlag,
	}
	if *patternOnlyFlag {
		opts.Strategy = models.StrategyPatternOnly
	}
	return opts
}

func main() {
	flag.Parse()

	kw, err := NewKeyWarden()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(2)
	}
	defer kw.logger.Close()

	start := time.Now()
	if err := kw.Run(); err != nil {
		kw.logger.Error(err.Error())
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	kw.logger.LogSystemEvent("done", "run completed", map[string]interface{}{
		"elapsed": time.Since(start).String(),
	})
}
