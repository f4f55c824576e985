package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	catalogfile "storefront-service/internal/adapters/catalog/file"
	"storefront-service/internal/adapters/gateway/platform"
	"storefront-service/internal/adapters/gateway/sim"
	httphandler "storefront-service/internal/adapters/http"
	"storefront-service/internal/adapters/messaging/kafka"
	messagingmock "storefront-service/internal/adapters/messaging/mock"
	"storefront-service/internal/adapters/rewards/backend"
	"storefront-service/internal/adapters/storage/postgres"
	redisadapter "storefront-service/internal/adapters/storage/redis"
	"storefront-service/internal/app"
	"storefront-service/internal/config"
	"storefront-service/internal/core/ports"
	"storefront-service/internal/observability"
)

// resolverHandle lets the sim gateway be built before the engine it
// resolves into; main fills it in once the engine exists.
type resolverHandle struct {
	resolver ports.AuthorizationResolver
}

func (r *resolverHandle) ResolveAuthorization(itemID int, authorized bool) bool {
	if r.resolver == nil {
		return false
	}
	return r.resolver.ResolveAuthorization(itemID, authorized)
}

func main() {
	// --- 1. Configuration and Logging ---
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("Storefront service starting", "env", cfg.App.Env, "port", cfg.Server.Port)

	// --- 2. Validate critical config ---
	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		logger.Error("JWT secret is not set")
		os.Exit(1)
	}

	// --- 3. Observability ---
	shutdownTracer, err := observability.InitTracer(cfg.Jaeger.Port, "storefront-service")
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to shutdown tracer", "error", err)
		}
	}()

	ctx := context.Background()

	// --- 4. History store ---
	var history ports.HistoryStore
	switch cfg.History.Backend {
	case "redis":
		cache, err := redisadapter.NewHistoryCache(cfg.Redis.Addr)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("Failed to close Redis history cache", "error", err)
			}
		}()
		history = cache
		logger.Info("Using Redis purchase history")
	default:
		repo, err := postgres.NewHistoryRepository(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		history = repo
		logger.Info("Using PostgreSQL purchase history")
	}

	// --- 5. Event publisher ---
	var publisher ports.EventPublisher
	if cfg.Kafka.Enabled {
		broker, err := kafka.NewPublisher(strings.Split(cfg.Kafka.BootstrapServers, ","), cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Error("Failed to create Kafka publisher", "error", err)
			os.Exit(1)
		}
		defer broker.Close()
		publisher = broker
		logger.Info("Kafka publisher created", "topic", cfg.Kafka.Topic)
	} else {
		publisher = messagingmock.NewPublisher(logger)
	}

	// --- 6. Platform gateway and engine ---
	catalog := catalogfile.NewProvider(cfg.Catalog.Path)
	rewards := backend.NewClient(cfg.Rewards.BaseURL, logger)

	handle := &resolverHandle{}
	var gateway ports.PurchaseGateway
	switch cfg.Platform.Mode {
	case "http":
		callbackURL := "http://localhost:" + cfg.Server.Port + "/platform/authorization"
		gateway = platform.NewGateway(cfg.Platform.BaseURL, callbackURL, logger)
	default:
		gateway = sim.NewGateway(handle,
			sim.Decision(cfg.Platform.SimDecision),
			time.Duration(cfg.Platform.SimDelayMS)*time.Millisecond,
			logger)
		logger.Info("Using simulated platform gateway", "decision", cfg.Platform.SimDecision)
	}

	engine := app.NewEngine(catalog, history, rewards, gateway, publisher, logger, cfg.Purchase.AuthTimeout())
	handle.resolver = engine
	defer engine.Close()

	if _, err := engine.LoadCatalog(ctx); err != nil {
		logger.Error("Failed to load item catalog", "error", err)
		os.Exit(1)
	}

	// Mirror engine notifications into the service log.
	events, unsubscribe := engine.Subscribe()
	defer unsubscribe()
	go func() {
		for ev := range events {
			if ev.Completion != nil {
				logger.Info("purchase event",
					"item_id", ev.Completion.ItemID,
					"success", ev.Completion.Success,
					"message", ev.Completion.Message)
			} else {
				logger.Debug("payment state changed", "state", ev.State)
			}
		}
	}()

	// --- 7. HTTP Router ---
	purchaseHandler := httphandler.NewPurchaseHandler(engine, logger)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		observability.NewLoggerMiddleware(logger),
		observability.NewMetricsMiddleware("storefront-service"),
		observability.NewTracingMiddleware("storefront-service"),
	)

	if cfg.RateLimit.Limit > 0 {
		rdb, err := redisadapter.NewClient(cfg.Redis.Addr)
		if err != nil {
			logger.Error("Failed to connect to Redis for rate limiting", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("Failed to close Redis client", "error", err)
			}
		}()
		window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		r.Use(httphandler.RateLimiterMiddleware(rdb, cfg.RateLimit.Limit, window, logger))
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "storefront-service",
		}); err != nil {
			logger.Error("Failed to write health response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/items", purchaseHandler.HandleListItems)
	r.Get("/state", purchaseHandler.HandleState)

	// The platform posts its authorization decisions here.
	r.Post("/platform/authorization", purchaseHandler.HandleAuthorizationCallback)

	// Protected routes: /api/v1/*
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httphandler.JWTMiddleware([]byte(jwtSecret), logger))
		r.Post("/items/{id}/purchase", purchaseHandler.HandlePurchase)
		r.Get("/items/{id}/eligibility", purchaseHandler.HandleEligibility)
	})

	// --- 8. HTTP Server ---
	serverAddr := cfg.Server.Port
	if serverAddr == "" {
		serverAddr = ":8080"
	} else if !strings.Contains(serverAddr, ":") {
		serverAddr = ":" + serverAddr
	}

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: r,
		// The purchase route legitimately stays open for the whole
		// authorization wait, so the write timeout must exceed it.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: app.DefaultAuthTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exited properly")
}
