package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/model"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
)

const eventColumns = `sequence_id, event_id, aggregate_id, aggregate_type, event_name,
	schema_version, payload, metadata, version, occurred_on, recorded_on`

type eventRepository struct {
	BaseRepository
}

func NewEventRepository(base BaseRepository) repository.EventRepository {
	return &eventRepository{base}
}

func (r *eventRepository) CurrentVersion(ctx context.Context, aggregateID string) (int, error) {
	query := r.rebind(`SELECT COALESCE(MAX(version), 0) FROM stored_events WHERE aggregate_id = ?`)

	var version int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &version, query, aggregateID); err != nil {
		return 0, fmt.Errorf("failed to read stream version: %w", err)
	}
	return version, nil
}

func (r *eventRepository) Insert(ctx context.Context, events []*model.StoredEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := r.rebind(`
		INSERT INTO stored_events (
			event_id, aggregate_id, aggregate_type, event_name, schema_version,
			payload, metadata, version, occurred_on, recorded_on
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING sequence_id
	`)

	return r.WithTransaction(ctx, func(ctx context.Context) error {
		for _, e := range events {
			if e.RecordedOn.IsZero() {
				e.RecordedOn = time.Now().UTC()
			}
			err := r.ext(ctx).QueryRowxContext(ctx, query,
				e.EventID,
				e.AggregateID,
				e.AggregateType,
				e.EventName,
				e.SchemaVersion,
				e.Payload,
				e.Metadata,
				e.Version,
				e.OccurredOn.UTC(),
				e.RecordedOn.UTC(),
			).Scan(&e.SequenceID)
			if err != nil {
				if isStreamVersionViolation(err) {
					// The stream moved on between the version check and the
					// insert; the row that won holds at least this version.
					expected := events[0].Version - 1
					return apperrors.NewConcurrencyConflict(e.AggregateID, expected, expected+1)
				}
				return fmt.Errorf("failed to insert event: %w", err)
			}
		}
		return nil
	})
}

func (r *eventRepository) Load(ctx context.Context, aggregateID string, fromVersion int) ([]*model.StoredEvent, error) {
	query := r.rebind(`SELECT ` + eventColumns + `
		FROM stored_events
		WHERE aggregate_id = ? AND version > ?
		ORDER BY version ASC`)

	var events []*model.StoredEvent
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &events, query, aggregateID, fromVersion); err != nil {
		return nil, fmt.Errorf("failed to load stream: %w", err)
	}
	for _, e := range events {
		e.OccurredOn = e.OccurredOn.UTC()
		e.RecordedOn = e.RecordedOn.UTC()
	}
	return events, nil
}
