package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"croptrust/verification-portal/verification-backend/internal/app"
	"croptrust/verification-portal/verification-backend/internal/config"
	"croptrust/verification-portal/verification-backend/internal/notifications"
	"croptrust/verification-portal/verification-backend/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run a single retry pass and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger, "verification-workers")
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close(context.Background())

	scheduler := notifications.NewRetryScheduler(a.Dispatcher, cfg.Workers.RetrySchedule, cfg.Workers.RetryBatchSize, logger)

	if *once {
		if _, err := scheduler.RunOnce(ctx); err != nil {
			logger.Error("Retry pass failed", zap.Error(err))
		}
		return
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start retry scheduler", zap.Error(err))
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	cancel()
	scheduler.Stop()
	logger.Info("Notification worker stopped")
}
