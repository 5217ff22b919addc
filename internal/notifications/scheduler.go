package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retrier redelivers failed notifications
type Retrier interface {
	Retry(ctx context.Context, limit int) (RetryStats, error)
}

// RetryScheduler drains failed deliveries on a cron schedule
type RetryScheduler struct {
	cron      *cron.Cron
	retrier   Retrier
	spec      string
	batchSize int
	logger    *zap.Logger
	mu        sync.Mutex
	running   bool
}

// NewRetryScheduler creates a scheduler. spec is a standard five-field cron
// expression or a descriptor such as "@every 5m".
func NewRetryScheduler(retrier Retrier, spec string, batchSize int, logger *zap.Logger) *RetryScheduler {
	return &RetryScheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		retrier:   retrier,
		spec:      spec,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start registers the retry job and starts the cron scheduler
func (s *RetryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("retry scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.spec, func() { _, _ = s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", s.spec, err)
	}

	s.logger.Info("Starting notification retry scheduler",
		zap.String("schedule", s.spec),
		zap.Int("batch_size", s.batchSize))
	s.cron.Start()
	s.running = true
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *RetryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.logger.Info("Stopping notification retry scheduler")
	<-s.cron.Stop().Done()
	s.running = false
}

// RunOnce performs one retry pass
func (s *RetryScheduler) RunOnce(ctx context.Context) (RetryStats, error) {
	stats, err := s.retrier.Retry(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("Notification retry failed", zap.Error(err))
		return stats, err
	}
	if stats.Attempted > 0 {
		s.logger.Info("Notification retry completed",
			zap.Int("attempted", stats.Attempted),
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
			zap.Int("abandoned", stats.Abandoned))
	}
	return stats, nil
}
