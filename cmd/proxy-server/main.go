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

	"meal-order-assistant/internal/config"
	"meal-order-assistant/internal/proxy"
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
	if err := cfg.ValidateProxyServer(); err != nil {
		logger.Fatal("incomplete proxy config", zap.Error(err))
	}

	server := &http.Server{
		Addr:    cfg.ProxyListenAddr,
		Handler: proxy.NewServer(cfg, logger).Routes(),
	}

	go func() {
		logger.Info("proxy listening", zap.String("addr", cfg.ProxyListenAddr))
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
	logger.Info("proxy stopped")
}
