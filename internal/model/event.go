package model

import (
	"time"

	"github.com/google/uuid"
)

// StoredEvent is one row of the append-only event log.
type StoredEvent struct {
	SequenceID    int64     `db:"sequence_id" json:"sequence_id"`
	EventID       uuid.UUID `db:"event_id" json:"event_id"`
	AggregateID   string    `db:"aggregate_id" json:"aggregate_id"`
	AggregateType string    `db:"aggregate_type" json:"aggregate_type"`
	EventName     string    `db:"event_name" json:"event_name"`
	SchemaVersion int       `db:"schema_version" json:"schema_version"`
	Payload       JSONMap   `db:"payload" json:"payload"`
	Metadata      StringMap `db:"metadata" json:"metadata,omitempty"`
	Version       int       `db:"version" json:"version"`
	OccurredOn    time.Time `db:"occurred_on" json:"occurred_on"`
	RecordedOn    time.Time `db:"recorded_on" json:"recorded_on"`
}
