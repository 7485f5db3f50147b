package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/metrics"
)

type OutboxCleanupConfig struct {
	Retention time.Duration
	Interval  time.Duration
}

// OutboxCleanupWorker removes sent records once they are older than the
// retention period. Failed records are kept for inspection.
type OutboxCleanupWorker struct {
	repo    repository.OutboxRepository
	config  OutboxCleanupConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, config OutboxCleanupConfig, logger *logger.Logger, metrics *metrics.Metrics) *OutboxCleanupWorker {
	if config.Retention <= 0 {
		panic("Retention must be greater than 0")
	}
	if config.Interval <= 0 {
		panic("Interval must be greater than 0")
	}

	return &OutboxCleanupWorker{
		repo:    repo,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				// Log error but continue
				w.logger.Error(err, "Failed to clean up outbox records")
			}
		}
	}
}

// Cleanup runs one pass and returns the number of deleted records.
func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.config.Retention)

	rows, err := w.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox records: %w", err)
	}

	if w.metrics != nil {
		w.metrics.OutboxRecordsCleaned.Add(float64(rows))
	}
	w.logger.Info("Cleaned up sent outbox records", "deleted", rows, "cutoff", cutoff)
	return rows, nil
}
