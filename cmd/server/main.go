package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/karthivk/Callcenter/internal/config"
	"github.com/karthivk/Callcenter/internal/handler"
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

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Base().Fatal("failed to load configuration", zap.Error(err))
	}

	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		logger.Base().Fatal("failed to initialize handlers", zap.Error(err))
	}
	defer handlerManager.Close()

	router := mux.NewRouter()
	handlerManager.SetupAllRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Base().Info("call server listening",
			zap.String("port", cfg.Port),
			zap.String("base_url", cfg.APIBaseURL),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Base().Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Base().Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Base().Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Base().Info("server stopped")
}
