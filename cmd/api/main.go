package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/ticket-triage/internal/adapters/primary/http"
	mw "github.com/lorrc/ticket-triage/internal/adapters/primary/http/middleware"
	"github.com/lorrc/ticket-triage/internal/adapters/primary/websocket"
	"github.com/lorrc/ticket-triage/internal/adapters/secondary/llm"
	"github.com/lorrc/ticket-triage/internal/adapters/secondary/postgres"
	"github.com/lorrc/ticket-triage/internal/config"
	"github.com/lorrc/ticket-triage/internal/core/services"
	"github.com/lorrc/ticket-triage/internal/infrastructure/logging"
	"github.com/lorrc/ticket-triage/internal/infrastructure/metrics"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Database Pool
	if cfg.Database.RunMigrations {
		if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Real-time Feed and Metrics
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	appMetrics := metrics.New()

	// 5. Initialize Rate Limiters
	var generalRateLimiter, classifyRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalConfig := mw.DefaultRateLimiterConfig()
		generalConfig.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		generalConfig.BurstSize = cfg.RateLimit.BurstSize
		generalRateLimiter = mw.NewRateLimiter(generalConfig)
		defer generalRateLimiter.Stop()
	}
	if cfg.RateLimit.ClassifyLimitEnabled() {
		classifyRateLimiter = mw.NewRateLimiter(mw.ClassifyRateLimiterConfig(
			cfg.RateLimit.ClassifyRPS,
			cfg.RateLimit.ClassifyBurst,
		))
		defer classifyRateLimiter.Stop()
		logger.Info("classify rate limit enabled", "rps", cfg.RateLimit.ClassifyRPS, "burst", cfg.RateLimit.ClassifyBurst)
	}

	// 6. Dependency Injection (Wiring the Hexagon)
	completionClient, err := llm.New(llm.Config{
		Provider:       cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        cfg.LLM.Timeout,
		ResponseFormat: cfg.LLM.ResponseFormat,
	}, logger)
	if err != nil {
		logger.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	if !completionClient.Configured() {
		logger.Warn("LLM_API_KEY not set; classification will return default suggestions")
	}

	// Repositories (Secondary Adapters)
	ticketRepo := postgres.NewTicketRepository(pool)
	statsRepo := postgres.NewStatsRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	// Services (Core)
	ticketService := services.NewTicketService(ticketRepo, txManager, hub, logger)
	statsService := services.NewStatsService(statsRepo, txManager)
	classificationService := services.NewClassificationService(completionClient, appMetrics, cfg.LLM.Timeout, logger)

	// Handlers (Primary Adapters)
	errorHandler := httpAdapter.NewErrorHandler(logger)
	ticketHandler := httpAdapter.NewTicketHandler(ticketService, statsService, classificationService, errorHandler, logger)
	if classifyRateLimiter != nil {
		ticketHandler.WithClassifyLimiter(classifyRateLimiter.Middleware)
	}
	wsHandler := httpAdapter.NewWebSocketHandler(hub, httpAdapter.WebSocketConfig{
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		PingInterval:    cfg.WebSocket.PingInterval,
		PongWait:        cfg.WebSocket.PongWait,
		IsDevelopment:   cfg.IsDevelopment(),
	}, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, completionClient.Configured(), cfg.App.Version)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(mw.Metrics(appMetrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders: []string{mw.RequestIDHeader},
		MaxAge:         cfg.CORS.MaxAge,
	}))

	// Probes and scraping stay outside the rate limit.
	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", appMetrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if generalRateLimiter != nil {
			r.Use(generalRateLimiter.Middleware)
		}

		r.Get("/ws", wsHandler.ServeHTTP)
		r.Route("/tickets", ticketHandler.RegisterRoutes)
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return
	}

	logger.Info("server shutdown complete")
}
