package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartqueue/internal/app"
	"smartqueue/internal/config"
	"smartqueue/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	logger := logger.New(cfg.Log.Dir)
	defer logger.Close()

	logger.Info("APP", "Starting SmartQueue initialization")
	if err := cfg.Validate(); err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("APP", fmt.Sprintf("Failed to initialize: %v", err))
	}
	defer application.Close()

	workers, cancelWorkers := context.WithCancel(context.Background())
	if err := application.Start(workers); err != nil {
		cancelWorkers()
		logger.Fatal("APP", fmt.Sprintf("Failed to start background workers: %v", err))
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      application.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// Display streams end when the shutdown signal arrives.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 SmartQueue running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
	// Stop the dispatcher after HTTP so in-flight transitions are still published.
	cancelWorkers()
	application.Wait()
	logger.Info("HTTP", "✅ SmartQueue shutdown complete")
}
