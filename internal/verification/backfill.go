package verification

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// BackfillStats summarises a backfill run
type BackfillStats struct {
	Scanned  int
	Assigned int
	Failed   int
}

// Backfiller assigns requestIds to legacy records stored without one
type Backfiller struct {
	repo        Repository
	ids         *RequestIDGenerator
	maxAttempts int
	logger      *zap.Logger
}

func NewBackfiller(repo Repository, ids *RequestIDGenerator, maxAttempts int, logger *zap.Logger) *Backfiller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRequestIDAttempts
	}
	return &Backfiller{repo: repo, ids: ids, maxAttempts: maxAttempts, logger: logger}
}

// Run processes records in batches until none are left or a whole batch
// fails, so records that keep failing do not loop forever.
func (b *Backfiller) Run(ctx context.Context, batchSize int) (BackfillStats, error) {
	var stats BackfillStats
	failed := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		recs, err := b.repo.ListMissingRequestID(ctx, batchSize+len(failed))
		if err != nil {
			return stats, err
		}

		stamp := b.ids.now()
		progressed := false
		for _, rec := range recs {
			if _, seen := failed[rec.ID]; seen {
				continue
			}
			stats.Scanned++

			requestID, err := assignRequestID(ctx, b.repo, b.ids, b.maxAttempts, rec.District, rec.Taluk, stamp, func(candidate string) error {
				return b.repo.SetRequestID(ctx, rec.ID, candidate)
			})
			switch {
			case err == nil:
				stats.Assigned++
				progressed = true
				b.logger.Debug("Assigned requestId", zap.String("record_id", rec.ID), zap.String("request_id", requestID))
			case errors.Is(err, ErrStatusConflict):
				// assigned by someone else since the scan
				progressed = true
			default:
				stats.Failed++
				failed[rec.ID] = struct{}{}
				b.logger.Error("Failed to assign requestId", zap.String("record_id", rec.ID), zap.Error(err))
			}
		}

		if !progressed {
			break
		}
	}

	b.logger.Info("RequestId backfill finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("assigned", stats.Assigned),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}
