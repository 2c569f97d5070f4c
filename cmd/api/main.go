package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"receipt-schema-api/internal/cache"
	"receipt-schema-api/internal/config"
	"receipt-schema-api/internal/database"
	"receipt-schema-api/internal/events"
	"receipt-schema-api/internal/features"
	"receipt-schema-api/internal/handler"
	"receipt-schema-api/internal/logging"
	"receipt-schema-api/internal/metrics"
	"receipt-schema-api/internal/middleware"
	"receipt-schema-api/internal/service"
	tlsconfig "receipt-schema-api/internal/tls"
	"receipt-schema-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Initialize audit database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize outcome cache
	outcomeCache, closeCache, err := newCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	eventManager := events.NewManager(cfg.Features.EventHooks, logger)
	featureManager := features.NewManagerWithDefaults(features.Defaults{
		Cache:               cfg.Features.Cache,
		EventHooks:          cfg.Features.EventHooks,
		AuditLog:            cfg.Features.AuditLog,
		ConsistencyWarnings: cfg.Features.ConsistencyWarnings,
	})
	m := metrics.New()

	// Initialize service
	svc := service.NewService(service.Options{
		DB:       db,
		Cache:    outcomeCache,
		CacheTTL: time.Duration(cfg.Cache.TTL) * time.Second,
		Events:   eventManager,
		Features: featureManager,
		Metrics:  m,
		Logger:   logger,
	})

	// Initialize handlers
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		Logger:      logger,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware())
	r.Use(middleware.Metrics(m))

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: splitOrigins(cfg.Security.AllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))

	// Routes
	r.Route("/receipts", func(r chi.Router) {
		r.Post("/validate", h.ValidateReceipt)
		r.Post("/validate/batch", h.ValidateBatch)
	})

	r.Get("/schema/receipt", h.GetReceiptSchema)

	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.ListAudits)
		r.Get("/summary", h.GetAuditSummary)
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", m.Handler())

	// Configure TLS if enabled
	var tlsConfig *tls.Config
	if cfg.Server.EnableTLS {
		tlsConfig, err = tlsconfig.LoadTLSConfig(tlsconfig.Config{
			CertFile: cfg.Server.CertFile,
			KeyFile:  cfg.Server.KeyFile,
		})
		if err != nil {
			return fmt.Errorf("failed to load TLS configuration: %w", err)
		}
		if cfg.Server.CertFile == "" {
			logger.Warn("no certificate files provided, using self-signed certificate for development")
		}
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server",
		zap.String("addr", addr),
		zap.Bool("tls", cfg.Server.EnableTLS),
		zap.String("database", cfg.Database.Path),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Any("features", featureManager.GetAll()),
	)

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if tlsConfig != nil {
			// Certificates are already in TLSConfig.
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-sigint:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("error shutting down server", zap.Error(err))
	}
	eventManager.Shutdown()
	if err := tracing.Shutdown(ctx); err != nil {
		logger.Error("error shutting down tracer", zap.Error(err))
	}

	return nil
}

func newCache(cfg config.CacheConfig) (cache.Cache, func(), error) {
	if cfg.Backend == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rc, func() { rc.Close() }, nil
	}
	return cache.NewInMemoryCache(), func() {}, nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
