package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/model"
)

// ErrOutboxRecordSettled is returned by OutboxRepository.Update when the
// record is no longer pending, e.g. another processor already delivered it.
var ErrOutboxRecordSettled = errors.New("outbox record is no longer pending")

// All repository interfaces in one file
type (
	// EventRepository is the storage side of the event store. Rows are never
	// updated or deleted once inserted.
	EventRepository interface {
		// CurrentVersion returns the highest version stored for the aggregate, 0 if none.
		CurrentVersion(ctx context.Context, aggregateID string) (int, error)
		// Insert persists rows whose Version fields are already assigned. A
		// duplicate (aggregate_id, version) fails with ConcurrencyConflictError.
		Insert(ctx context.Context, events []*model.StoredEvent) error
		// Load returns rows with version > fromVersion ordered by version.
		Load(ctx context.Context, aggregateID string, fromVersion int) ([]*model.StoredEvent, error)
	}

	OutboxRepository interface {
		// Save inserts a record and reports whether a row was written; an
		// existing (triggering_event_id, recipient, notification_type) is a no-op.
		Save(ctx context.Context, record *model.OutboxRecord) (bool, error)
		Get(ctx context.Context, id uuid.UUID) (*model.OutboxRecord, error)
		// GetPending returns up to limit pending records, oldest first.
		GetPending(ctx context.Context, limit int) ([]*model.OutboxRecord, error)
		// ClaimPending marks up to limit unclaimed (or lease-expired) pending
		// records as owned by owner and returns them, oldest first.
		ClaimPending(ctx context.Context, owner string, limit int, now time.Time, lease time.Duration) ([]*model.OutboxRecord, error)
		// Update persists status, attempts, last_error, sent_at and the claim
		// columns of a record that is still pending in storage. Otherwise it
		// writes nothing and fails with ErrOutboxRecordSettled.
		Update(ctx context.Context, record *model.OutboxRecord) error
		ListByStatus(ctx context.Context, status model.OutboxStatus, limit int) ([]*model.OutboxRecord, error)
		CountByStatus(ctx context.Context) (map[model.OutboxStatus]int, error)
		DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Transactor runs fn in a transaction carried by the context it passes
	// on. Nested calls join the outer transaction.
	Transactor interface {
		WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}
)
