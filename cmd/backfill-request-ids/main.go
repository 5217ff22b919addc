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
	"croptrust/verification-portal/verification-backend/pkg/logging"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 1 when the backfill aborts, 2 when some
// records could not be assigned.
func run() int {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	batchSize := flag.Int("batch", 0, "records per batch (defaults to workers.backfill_batch_size)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Store.Driver == config.StoreMemory {
		zap.NewExample().Fatal("Backfill needs a persistent store; set STORE_DRIVER to mongo or postgres")
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, "verification-backfill")
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close(context.Background())

	size := *batchSize
	if size <= 0 {
		size = cfg.Workers.BackfillBatchSize
	}

	stats, err := a.Backfiller().Run(ctx, size)
	if err != nil {
		logger.Error("Backfill aborted", zap.Error(err), zap.Int("assigned", stats.Assigned))
		return 1
	}
	if stats.Failed > 0 {
		return 2
	}
	return 0
}
