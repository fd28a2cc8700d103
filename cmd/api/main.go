// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/anchor-collective/anchor/internal/anchor"
	"github.com/anchor-collective/anchor/internal/api"
	"github.com/anchor-collective/anchor/internal/auth"
	"github.com/anchor-collective/anchor/internal/config"
	"github.com/anchor-collective/anchor/internal/db"
	"github.com/anchor-collective/anchor/internal/health"
	"github.com/anchor-collective/anchor/internal/idempotency"
	"github.com/anchor-collective/anchor/internal/middleware"
	"github.com/anchor-collective/anchor/internal/tracing"
	"github.com/anchor-collective/anchor/internal/upload"
	"github.com/anchor-collective/anchor/internal/user"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Anchor API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	ctx := context.Background()

	// Tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "anchor-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	anchorMetrics := anchor.NewMetrics()
	if err := anchorMetrics.Register(registry); err != nil {
		logger.Error("failed to register anchor metrics", "error", err)
		os.Exit(1)
	}

	// Repositories: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		anchorRepo anchor.Repository
		userRepo   user.Repository
		dbChecker  api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, err := db.Open(connectCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		anchorRepo = anchor.NewPostgresRepository(conn, logger)
		userRepo = user.NewPostgresRepository(conn, logger)
		dbChecker = health.NewDBChecker(conn)
		logger.Info("using postgres repositories")
	} else {
		anchorRepo = anchor.NewInMemoryRepository()
		userRepo = user.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
	}

	// Rate limit store: Redis when configured, in-memory otherwise.
	var (
		rateLimitStore middleware.RateLimitStore
		redisChecker   api.HealthChecker
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStoreWithMetrics(redisClient, httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("using redis rate limit store", "addr", cfg.RedisAddr)
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
		logger.Warn("REDIS_ADDR not set, using in-memory rate limit store")
	}

	unlockLimit := middleware.DefaultUnlockLimit()
	if cfg.UnlockRateLimit > 0 {
		unlockLimit.RequestsPerWindow = cfg.UnlockRateLimit
	}
	nearbyLimit := middleware.DefaultNearbyLimit()
	if cfg.NearbyRateLimit > 0 {
		nearbyLimit.RequestsPerWindow = cfg.NearbyRateLimit
	}

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	// Domain services
	anchorService := anchor.NewService(anchorRepo, logger, anchorMetrics)
	unlockEngine := anchor.NewUnlockEngine(anchorRepo, logger, anchorMetrics)
	discovery := anchor.NewDiscovery(anchorRepo, logger, anchorMetrics)
	userService := user.NewService(userRepo, logger)

	// Protected routes
	apiMux := http.NewServeMux()
	api.NewAnchorHandlers(anchorService, unlockEngine, discovery).Register(apiMux)
	api.NewUserHandlers(userService).Register(apiMux)

	if cfg.UploadsEnabled() {
		uploadService, err := upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.S3BucketName,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			MaxSizeMB:       cfg.MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize upload service", "error", err)
			os.Exit(1)
		}
		api.NewUploadHandlers(uploadService).Register(apiMux)
	} else {
		logger.Warn("S3 not configured, upload signing disabled")
	}

	// Unlock attempts are idempotent on the Idempotency-Key header so mobile
	// clients can safely retry over flaky connections.
	idempotencyRepo := idempotency.NewInMemoryRepository()
	cleanupStop := make(chan struct{})
	defer close(cleanupStop)
	go idempotency.RunPeriodicCleanup(idempotencyRepo, time.Hour, idempotency.DefaultExpiry, cleanupStop)

	rateLimited := rateLimitedRoutes(apiMux, rateLimitStore, unlockLimit, nearbyLimit, httpMetrics)
	idempotent := middleware.IdempotencyMiddleware(idempotencyRepo, map[string]bool{
		"/anchors/{id}/unlock": true,
	})(rateLimited)
	protected := middleware.Auth(jwtService)(idempotent)

	// Public routes
	mux := http.NewServeMux()
	api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      dbChecker,
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	}).Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", protected)

	var handler http.Handler = mux
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
			MaxAge:           3600,
		})(handler)
	}
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     cfg.ProfilingEnabled,
		Environment: cfg.Env,
	})(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("anchor-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// rateLimitedRoutes applies per-route rate limits: unlock attempts and nearby
// discovery get their own windows keyed by authenticated user.
func rateLimitedRoutes(next http.Handler, store middleware.RateLimitStore, unlockLimit, nearbyLimit middleware.RateLimitConfig, metrics *middleware.Metrics) http.Handler {
	unlockLimited := middleware.RateLimiter(store, unlockLimit, middleware.UserKeyFunc(), metrics)(next)
	nearbyLimited := middleware.RateLimiter(store, nearbyLimit, middleware.UserKeyFunc(), metrics)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/unlock"):
			unlockLimited.ServeHTTP(w, r)
		case r.URL.Path == "/anchors/nearby":
			nearbyLimited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
