package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wvdi-ph/drivebot/internal/api/router"
	appconfig "github.com/wvdi-ph/drivebot/internal/config"
	"github.com/wvdi-ph/drivebot/internal/conversation"
	"github.com/wvdi-ph/drivebot/internal/knowledge"
	"github.com/wvdi-ph/drivebot/internal/leads"
	"github.com/wvdi-ph/drivebot/internal/observability/metrics"
	"github.com/wvdi-ph/drivebot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting drivebot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"provider_order", cfg.ProviderOrder,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipelineMetrics := metrics.NewPipelineMetrics(nil)

	providers := buildProviders(ctx, cfg, logger)
	if len(providers) == 0 {
		logger.Error("no AI providers configured")
		os.Exit(1)
	}
	fallback := conversation.NewFallbackProvider(providers, logger, pipelineMetrics)

	store := buildSessionStore(cfg, logger)
	conversation.StartSweeper(ctx, store, cfg.SweepInterval, logger)

	base := knowledge.Load(logger)
	chatService := conversation.NewService(store, fallback, base, logger)
	conversationHandler := conversation.NewHandler(chatService, logger, pipelineMetrics)

	leadsHandler := leads.NewHandler(buildLeadsRepository(cfg, logger), logger, pipelineMetrics)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		LeadsHandler:        leadsHandler,
		MetricsHandler:      promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildProviders constructs the configured adapters in fallback priority
// order, skipping backends whose credentials are missing.
func buildProviders(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) []conversation.Provider {
	var providers []conversation.Provider

	for _, name := range cfg.ProviderOrder {
		switch name {
		case "gemini":
			gemini, err := conversation.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				logger.Warn("skipping gemini provider", "error", err)
				continue
			}
			providers = append(providers, gemini)
		case "ollama":
			providers = append(providers, conversation.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel))
		default:
			logger.Warn("unknown AI provider in order, skipping", "provider", name)
		}
	}

	return providers
}

func buildSessionStore(cfg *appconfig.Config, logger *logging.Logger) conversation.SessionStore {
	if cfg.SessionBackend == "redis" && cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
		return conversation.NewRedisStore(client, cfg.SessionTTL)
	}
	return conversation.NewMemoryStore(cfg.SessionTTL)
}

func buildLeadsRepository(cfg *appconfig.Config, logger *logging.Logger) leads.Repository {
	repo, err := leads.NewSheetsRepository(leads.SheetsConfig{
		SpreadsheetID:       cfg.SheetsSpreadsheetID,
		SheetName:           cfg.SheetName,
		ServiceAccountEmail: cfg.GoogleServiceAccountEmail,
		PrivateKeyPEM:       cfg.GooglePrivateKey,
	}, logger)
	if err != nil {
		logger.Warn("google sheets lead store not available", "error", err)
		return leads.NotConfiguredRepository{}
	}
	return repo
}
