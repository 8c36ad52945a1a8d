package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"meal-order-assistant/internal/catering"
	"meal-order-assistant/internal/config"
	"meal-order-assistant/internal/database"
	"meal-order-assistant/internal/llm"
	"meal-order-assistant/internal/metrics"
	"meal-order-assistant/internal/prefs"
	"meal-order-assistant/internal/telegram"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.NewFromEnv()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if err := cfg.ValidateBot(); err != nil {
		logger.Fatal("incomplete bot config", zap.Error(err))
	}

	ctx := context.Background()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	client := catering.NewClient(cfg.ProxyURL, []byte(cfg.ProxySecret))
	prefsRepo := prefs.NewRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	var gen llm.TextGenerator
	if cfg.AIConfigured() {
		switch cfg.AIProvider {
		case config.ProviderCustom:
			gen = llm.NewCustomClient(cfg)
		case config.ProviderGemini:
			geminiClient, err := llm.NewGeminiClient(ctx, cfg)
			if err != nil {
				logger.Fatal("failed to create Gemini client", zap.Error(err))
			}
			if closer, ok := geminiClient.(llm.Closer); ok {
				defer closer.Close()
			}
			gen = geminiClient
		}
	} else {
		logger.Warn("AI provider not configured; /plan will ask for credentials")
	}

	bot, err := telegram.NewBot(cfg, client, gen, prefsRepo, metricsStore, logger)
	if err != nil {
		logger.Fatal("failed to initialize telegram bot", zap.Error(err))
	}
	bot.RegisterHandlers()

	server := &http.Server{Addr: cfg.TelegramListenAddr}

	go func() {
		logger.Info("bot listening", zap.String("addr", cfg.TelegramListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("bot stopped")
}
