package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/karthivk/Callcenter/internal/agent"
	"github.com/karthivk/Callcenter/internal/config"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Load .env in development; production uses real environment variables
	_ = godotenv.Load()

	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadAgentConfig()
	if err != nil {
		logger.Base().Fatal("failed to load configuration", zap.Error(err))
	}

	worker, err := agent.NewWorker(cfg)
	if err != nil {
		logger.Base().Fatal("failed to initialize worker", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Base().Error("worker exited", zap.Error(err))
	}
}
