package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/model"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/metrics"
)

// DeliveryTransport sends one rendered notification. Any error is treated as
// transient; the processor decides when to give up.
type DeliveryTransport interface {
	Send(ctx context.Context, recipient, subject, bodyHTML, bodyText string) error
}

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// SendTimeout bounds each transport call. Zero means no timeout.
	SendTimeout time.Duration
	// SendRate caps deliveries per second. Zero means unlimited.
	SendRate  float64
	SendBurst int
	// ClaimLease enables row claiming for several concurrent processors.
	// Zero means this processor assumes it is the only one.
	ClaimLease time.Duration
	WorkerID   string
}

// BatchResult summarises one ProcessBatch run.
type BatchResult struct {
	Fetched  int `json:"fetched"`
	Sent     int `json:"sent"`
	Retrying int `json:"retrying"`
	Failed   int `json:"failed"`
	// Skipped counts records another processor settled while this one was sending.
	Skipped int `json:"skipped"`
}

type OutboxProcessor struct {
	repo      repository.OutboxRepository
	transport DeliveryTransport
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	limiter   *rate.Limiter
	now       func() time.Time
	process   BatchFunc
	// mu keeps the ticker and manual triggers of one processor from
	// running batches over the same rows at once.
	mu sync.Mutex
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	transport DeliveryTransport,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	middleware ...BatchMiddleware,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.SendRate < 0 || config.SendTimeout < 0 || config.ClaimLease < 0 {
		panic("SendRate, SendTimeout and ClaimLease must not be negative")
	}
	if config.WorkerID == "" {
		config.WorkerID = uuid.NewString()
	}

	p := &OutboxProcessor{
		repo:      repo,
		transport: transport,
		config:    config,
		logger:    logger.WithFields(map[string]interface{}{"worker_id": config.WorkerID}),
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if config.SendRate > 0 {
		burst := config.SendBurst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(config.SendRate), burst)
	}
	p.process = ChainBatch(p.processBatch, middleware...)
	return p
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "worker_id", p.config.WorkerID, "batch_size", p.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx, p.config.BatchSize); err != nil {
				p.logger.Error(err, "Failed to process outbox batch")
			}
		}
	}
}

// ProcessBatch delivers up to limit pending records, oldest first. A failed
// delivery is recorded on its record and never stops the batch; failing to
// persist that bookkeeping does. A limit <= 0 uses the configured batch size.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = p.config.BatchSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.process(ctx, limit)
}

func (p *OutboxProcessor) processBatch(ctx context.Context, limit int) (BatchResult, error) {
	var result BatchResult

	records, err := p.fetch(ctx, limit)
	if err != nil {
		p.countDB("get_pending_records", "error")
		return result, fmt.Errorf("failed to get pending records: %w", err)
	}
	p.countDB("get_pending_records", "success")
	result.Fetched = len(records)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return result, err
			}
		}

		sendErr := p.deliver(ctx, record)
		if sendErr != nil && ctx.Err() != nil {
			// Shutting down; the attempt does not count against the record.
			return result, ctx.Err()
		}

		if sendErr == nil {
			record.MarkSent(p.now())
			settled, err := p.update(ctx, record)
			if err != nil {
				return result, fmt.Errorf("failed to record delivery of %s: %w", record.ID, err)
			}
			if settled {
				result.Skipped++
			} else {
				result.Sent++
			}
			continue
		}

		failure := apperrors.NewDeliveryFailed(sendErr)
		terminal := record.MarkAttemptFailed(sendErr)
		settled, err := p.update(ctx, record)
		if err != nil {
			return result, fmt.Errorf("failed to record delivery failure of %s: %w", record.ID, err)
		}
		if settled {
			result.Skipped++
			continue
		}

		fields := []interface{}{
			"record_id", record.ID.String(),
			"notification_type", record.NotificationType,
			"attempts", record.Attempts,
		}
		if terminal {
			result.Failed++
			p.logger.Error(failure, "Outbox record failed permanently", fields...)
		} else {
			result.Retrying++
			p.logger.Warn("Outbox delivery failed, will retry", append(fields, "error", failure.Error())...)
		}
	}

	return result, nil
}

// update persists the record's new state. settled reports that the stored
// row had already left Pending, in which case nothing was written.
func (p *OutboxProcessor) update(ctx context.Context, record *model.OutboxRecord) (settled bool, err error) {
	err = p.repo.Update(ctx, record)
	switch {
	case err == nil:
		p.countDB("update_record", "success")
		return false, nil
	case errors.Is(err, repository.ErrOutboxRecordSettled):
		p.countDB("update_record", "settled")
		p.logger.Warn("Outbox record settled by another processor, skipping",
			"record_id", record.ID.String(),
			"notification_type", record.NotificationType,
		)
		return true, nil
	default:
		p.countDB("update_record", "error")
		return false, err
	}
}

func (p *OutboxProcessor) fetch(ctx context.Context, limit int) ([]*model.OutboxRecord, error) {
	if p.config.ClaimLease > 0 {
		return p.repo.ClaimPending(ctx, p.config.WorkerID, limit, p.now(), p.config.ClaimLease)
	}
	return p.repo.GetPending(ctx, limit)
}

func (p *OutboxProcessor) deliver(ctx context.Context, record *model.OutboxRecord) error {
	if p.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.SendTimeout)
		defer cancel()
	}
	return p.transport.Send(ctx, record.Recipient, record.Subject, record.BodyHTML, record.BodyText)
}

func (p *OutboxProcessor) countDB(operation, status string) {
	if p.metrics != nil {
		p.metrics.DatabaseOperations.WithLabelValues(operation, status).Inc()
	}
}
