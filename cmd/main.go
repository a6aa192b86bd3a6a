package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"whatsapp-service/internal/config"
	"whatsapp-service/internal/server"
)

func main() {
	newLogger := zap.NewProduction
	if os.Getenv("APP_ENV") == "development" {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load config (.env is optional)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}
	defer srv.Close()

	logger.Info("whatsapp service starting",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("agent_ws", cfg.AgentWSURL),
		zap.String("sender", cfg.SenderTransport))

	if err := srv.Run(ctx); err != nil {
		logger.Error("whatsapp service stopped with error", zap.Error(err))
		return
	}
	logger.Info("whatsapp service shut down gracefully")
}
