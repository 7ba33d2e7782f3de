// Package api provides the read-only HTTP API for resolving scripture
// citations into links.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/FocuswithJustin/expander/core/books"
	"github.com/FocuswithJustin/expander/core/cache"
	"github.com/FocuswithJustin/expander/core/errors"
	"github.com/FocuswithJustin/expander/core/ref"
	"github.com/FocuswithJustin/expander/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server serves citation lookups against one registry.
type Server struct {
	cfg      Config
	registry *books.Registry
	parser   *ref.Parser
	builder  *ref.Builder
	cache    *cache.ReferenceCache
	limiter  *RateLimiter
	started  time.Time
}

// New builds a Server from cfg, loading the built-in catalog when
// cfg.Registry is nil.
func New(cfg Config) (*Server, error) {
	registry := cfg.Registry
	if registry == nil {
		var err error
		if registry, err = books.Default(); err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	cacheCfg := cache.Config{
		MaxSize: cacheSize(cfg),
		TTL:     cfg.CacheTTL,
		OnEvict: func(key, _ any) {
			logging.Debug("cache_evicted", "input", key)
		},
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		parser:   ref.NewParser(registry),
		builder:  ref.NewBuilder(ref.WithHost(cfg.Host), ref.WithLang(cfg.Lang)),
		cache:    cache.NewReferenceCache(cacheCfg),
		started:  time.Now(),
	}

	if cfg.RateLimitRequests > 0 {
		burst := cfg.RateLimitBurst
		if burst == 0 {
			burst = 10
		}
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         burst,
		})
	}

	return s, nil
}

// Routes returns the bare route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/resolve", s.handleResolve)
	mux.HandleFunc("/books", s.handleBooks)

	return mux
}

// Handler returns the routes wrapped in the middleware chain. Outermost
// first: request ID and logging, security headers, CORS, rate limiting.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.Routes()

	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}

	handler = CORSMiddleware(CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	handler = SecurityHeadersMiddleware(handler)

	return logging.CombinedMiddleware(handler)
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

// Start serves the API on cfg.Port until ctx is cancelled.
func Start(ctx context.Context, cfg Config) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.limiter != nil {
		logging.Info("rate limiting enabled",
			"requests_per_minute", cfg.RateLimitRequests,
			"burst_size", s.limiter.config.BurstSize)
	}
	if len(cfg.AllowedOrigins) == 0 {
		logging.Warn("CORS allows all origins", "recommendation", "set allowed-origins for production")
	}
	logging.ServerStartup("rest_api", "http", cfg.Port,
		"link_host", s.builder.Host(),
		"books", s.registry.Len(),
		"digest", s.registry.Digest(),
		"cache_size", cacheSize(cfg),
		"cache_ttl", cfg.CacheTTL.String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		logging.ErrorContext(ctx, "server_failed", "error", err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorContext(ctx, "server_failed", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		logging.ErrorContext(ctx, "server_failed", "error", err)
		return err
	}
	logging.InfoContext(ctx, "server_stopped", "uptime", time.Since(s.started).String())
	return nil
}

func cacheSize(cfg Config) int {
	if cfg.CacheSize > 0 {
		return cfg.CacheSize
	}
	return cache.DefaultConfig().MaxSize
}
