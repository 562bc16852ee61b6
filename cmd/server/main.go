// Tripflow - Conversational Trip Planning Server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/tripflow/internal/api"
	"github.com/ashureev/tripflow/internal/config"
	"github.com/ashureev/tripflow/internal/llm"
	"github.com/ashureev/tripflow/internal/middleware"
	"github.com/ashureev/tripflow/internal/planner"
	"github.com/ashureev/tripflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if lvl := cfg.SlogLevel(); lvl != slog.LevelInfo {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(logger)
	}

	slog.Info("Starting server", "port", cfg.Port, "provider", cfg.Provider, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	cache, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := cache.Close(); closeErr != nil {
			slog.Error("Failed to close cache", "error", closeErr)
		}
	}()

	if err := cache.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	gen, closeGen, err := newGenerator(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to initialize generator", "error", err)
		os.Exit(1)
	}
	defer closeGen()

	globalPath := ""
	if cfg.TurnLog.GlobalEnabled {
		globalPath = cfg.TurnLog.GlobalPath
	}
	turnLogger, err := planner.NewTurnLogger(planner.TurnLogConfig{
		Enabled:    cfg.TurnLog.Enabled,
		Dir:        cfg.TurnLog.Dir,
		GlobalPath: globalPath,
		QueueSize:  cfg.TurnLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize turn logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := turnLogger.Close(); closeErr != nil {
			slog.Error("Failed to close turn logger", "error", closeErr)
		}
	}()

	engine := planner.New(cache, gen, planner.Config{
		SessionTTL:  cfg.SessionTTL,
		TurnTimeout: cfg.TurnTimeout,
		TurnLog:     turnLogger,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))

	api.NewHandler(engine, cache).RegisterRoutes(r)

	// Create server.
	// Turns are bounded by TURN_TIMEOUT, not the server write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start expiry sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartSweeper(ctx, cache, cfg.SweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// newGenerator selects the text generation backend from config. The
// returned close function releases backend resources.
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, func(), error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		gem, err := llm.NewGemini(ctx, cfg.GoogleAPIKey, cfg.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini: %w", err)
		}
		return gem, func() {
			if err := gem.Close(); err != nil {
				slog.Error("Failed to close gemini client", "error", err)
			}
		}, nil
	case config.ProviderOpenAI:
		oa, err := llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("openai: %w", err)
		}
		return oa, func() {}, nil
	case config.ProviderMock:
		slog.Warn("Using the mock generator; every reply is canned")
		return llm.NewMock(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
