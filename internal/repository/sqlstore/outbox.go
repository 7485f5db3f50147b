package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/model"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
)

const outboxColumns = `id, triggering_event_id, notification_type, recipient, subject,
	body_html, body_text, status, attempts, last_error, created_at, sent_at,
	claimed_by, claimed_at`

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Save(ctx context.Context, record *model.OutboxRecord) (bool, error) {
	if record == nil {
		return false, fmt.Errorf("outbox record cannot be nil")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = model.OutboxStatusPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := r.rebind(`
		INSERT INTO outbox_records (
			id, triggering_event_id, notification_type, recipient, subject,
			body_html, body_text, status, attempts, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (triggering_event_id, recipient, notification_type) DO NOTHING
	`)

	result, err := r.ext(ctx).ExecContext(ctx, query,
		record.ID,
		record.TriggeringEventID,
		record.NotificationType,
		record.Recipient,
		record.Subject,
		record.BodyHTML,
		record.BodyText,
		string(record.Status),
		record.Attempts,
		record.LastError,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create outbox record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create outbox record: %w", err)
	}
	return rows > 0, nil
}

func (r *outboxRepository) Get(ctx context.Context, id uuid.UUID) (*model.OutboxRecord, error) {
	query := r.rebind(`SELECT ` + outboxColumns + ` FROM outbox_records WHERE id = ?`)

	var record model.OutboxRecord
	if err := sqlx.GetContext(ctx, r.ext(ctx), &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("outbox record", err)
		}
		return nil, fmt.Errorf("failed to get outbox record: %w", err)
	}
	normalize(&record)
	return &record, nil
}

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxRecord, error) {
	query := r.rebind(`SELECT ` + outboxColumns + `
		FROM outbox_records
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?`)

	var records []*model.OutboxRecord
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &records, query, string(model.OutboxStatusPending), limit); err != nil {
		return nil, fmt.Errorf("failed to get pending outbox records: %w", err)
	}
	normalize(records...)
	return records, nil
}

// ClaimPending is a conditional update: the outer WHERE is re-checked
// against concurrent claimers, so a row is handed to one owner per lease.
func (r *outboxRepository) ClaimPending(ctx context.Context, owner string, limit int, now time.Time, lease time.Duration) ([]*model.OutboxRecord, error) {
	// PostgreSQL keeps microseconds; the claim is re-read by equality.
	now = now.UTC().Truncate(time.Microsecond)
	cutoff := now.Add(-lease)
	pending := string(model.OutboxStatusPending)

	claim := r.rebind(`
		UPDATE outbox_records
		SET claimed_by = ?, claimed_at = ?
		WHERE status = ? AND (claimed_at IS NULL OR claimed_at < ?)
		AND id IN (
			SELECT id FROM outbox_records
			WHERE status = ? AND (claimed_at IS NULL OR claimed_at < ?)
			ORDER BY created_at ASC
			LIMIT ?
		)`)
	fetch := r.rebind(`SELECT ` + outboxColumns + `
		FROM outbox_records
		WHERE claimed_by = ? AND claimed_at = ? AND status = ?
		ORDER BY created_at ASC`)

	var records []*model.OutboxRecord
	err := r.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.ext(ctx).ExecContext(ctx, claim, owner, now, pending, cutoff, pending, cutoff, limit); err != nil {
			return fmt.Errorf("failed to claim outbox records: %w", err)
		}
		if err := sqlx.SelectContext(ctx, r.ext(ctx), &records, fetch, owner, now, pending); err != nil {
			return fmt.Errorf("failed to read claimed outbox records: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	normalize(records...)
	return records, nil
}

func (r *outboxRepository) Update(ctx context.Context, record *model.OutboxRecord) error {
	query := r.rebind(`
		UPDATE outbox_records
		SET status = ?, attempts = ?, last_error = ?, sent_at = ?, claimed_by = ?, claimed_at = ?
		WHERE id = ? AND status = ?
	`)

	result, err := r.ext(ctx).ExecContext(ctx, query,
		string(record.Status),
		record.Attempts,
		record.LastError,
		nullTime(record.SentAt),
		nullString(record.ClaimedBy),
		nullTime(record.ClaimedAt),
		record.ID,
		string(model.OutboxStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update outbox record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update outbox record: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox record %s: %w", record.ID, repository.ErrOutboxRecordSettled)
	}
	return nil
}

func (r *outboxRepository) ListByStatus(ctx context.Context, status model.OutboxStatus, limit int) ([]*model.OutboxRecord, error) {
	query := r.rebind(`SELECT ` + outboxColumns + `
		FROM outbox_records
		WHERE status = ?
		ORDER BY created_at DESC
		LIMIT ?`)

	var records []*model.OutboxRecord
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &records, query, string(status), limit); err != nil {
		return nil, fmt.Errorf("failed to list outbox records: %w", err)
	}
	normalize(records...)
	return records, nil
}

func (r *outboxRepository) CountByStatus(ctx context.Context) (map[model.OutboxStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM outbox_records GROUP BY status`
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count outbox records: %w", err)
	}

	counts := map[model.OutboxStatus]int{
		model.OutboxStatusPending: 0,
		model.OutboxStatusSent:    0,
		model.OutboxStatusFailed:  0,
	}
	for _, row := range rows {
		counts[model.OutboxStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *outboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	query := r.rebind(`
		DELETE FROM outbox_records
		WHERE status = ?
		AND sent_at < ?
	`)
	result, err := r.ext(ctx).ExecContext(ctx, query, string(model.OutboxStatusSent), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent outbox records: %w", err)
	}

	return result.RowsAffected()
}

// normalize drops the driver's location so records compare equal in UTC.
func normalize(records ...*model.OutboxRecord) {
	for _, r := range records {
		r.CreatedAt = r.CreatedAt.UTC()
		if r.SentAt != nil {
			t := r.SentAt.UTC()
			r.SentAt = &t
		}
		if r.ClaimedAt != nil {
			t := r.ClaimedAt.UTC()
			r.ClaimedAt = &t
		}
	}
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
