package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/model"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
)

// Envelope is a decoded event together with its storage fields.
type Envelope struct {
	SequenceID    int64          `json:"sequence_id"`
	Event         event.Event    `json:"-"`
	EventID       string         `json:"event_id"`
	EventName     string         `json:"event_name"`
	AggregateID   string         `json:"aggregate_id"`
	AggregateType string         `json:"aggregate_type"`
	// SchemaVersion is the version the payload was stored at, before upcasting.
	SchemaVersion int            `json:"schema_version"`
	Version       int            `json:"version"`
	Payload       event.Payload  `json:"payload"`
	Metadata      event.Metadata `json:"metadata,omitempty"`
	OccurredOn    time.Time      `json:"occurred_on"`
	RecordedOn    time.Time      `json:"recorded_on"`
}

// EventStore is the append-only log of aggregate streams.
type EventStore struct {
	events repository.EventRepository
	tx     repository.Transactor
	codec  *event.Codec
	now    func() time.Time

	middleware []Middleware
	append     AppendFunc
}

type Option func(*EventStore)

// WithMiddleware wraps Append. The first middleware given is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *EventStore) {
		s.middleware = append(s.middleware, mw...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *EventStore) {
		s.now = now
	}
}

func New(events repository.EventRepository, tx repository.Transactor, codec *event.Codec, opts ...Option) *EventStore {
	s := &EventStore{
		events: events,
		tx:     tx,
		codec:  codec,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.append = Chain(s.doAppend, s.middleware...)
	return s
}

// Append writes events at versions expectedVersion+1.. as one atomic unit. It
// fails with ConcurrencyConflictError, writing nothing, when the stream is not
// at expectedVersion. Metadata attached to ctx is stamped on every event.
func (s *EventStore) Append(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}
	return s.append(ctx, aggregateID, events, expectedVersion)
}

func (s *EventStore) doAppend(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) error {
	if expectedVersion < 0 {
		return fmt.Errorf("expected version must not be negative, got %d", expectedVersion)
	}

	metadata := model.StringMap(event.MetadataFrom(ctx).Clone())
	recordedOn := s.now()

	rows := make([]*model.StoredEvent, 0, len(events))
	for _, e := range events {
		if e.AggregateID() != aggregateID {
			return fmt.Errorf("event %s belongs to aggregate %q, not %q", e.EventID(), e.AggregateID(), aggregateID)
		}
		name, schemaVersion, payload, err := s.codec.Encode(e)
		if err != nil {
			return err
		}
		reg, err := s.codec.Registry().Resolve(name)
		if err != nil {
			return err
		}
		rows = append(rows, &model.StoredEvent{
			EventID:       e.EventID(),
			AggregateID:   aggregateID,
			AggregateType: reg.AggregateType,
			EventName:     name,
			SchemaVersion: schemaVersion,
			Payload:       model.JSONMap(payload),
			Metadata:      metadata,
			OccurredOn:    e.OccurredOn(),
			RecordedOn:    recordedOn,
		})
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.events.CurrentVersion(ctx, aggregateID)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return apperrors.NewConcurrencyConflict(aggregateID, expectedVersion, current)
		}

		for i, row := range rows {
			row.Version = expectedVersion + i + 1
		}
		return s.events.Insert(ctx, rows)
	})
}

// ReadStream returns the aggregate's whole stream ordered by version. An
// unknown aggregate yields an empty slice.
func (s *EventStore) ReadStream(ctx context.Context, aggregateID string) ([]Envelope, error) {
	return s.ReadStreamFrom(ctx, aggregateID, 0)
}

// ReadStreamFrom returns events with version > fromVersion.
func (s *EventStore) ReadStreamFrom(ctx context.Context, aggregateID string, fromVersion int) ([]Envelope, error) {
	rows, err := s.events.Load(ctx, aggregateID, fromVersion)
	if err != nil {
		return nil, err
	}

	envelopes := make([]Envelope, 0, len(rows))
	for _, row := range rows {
		base := event.Base{ID: row.EventID, Aggregate: row.AggregateID, OccurredAt: row.OccurredOn}
		e, err := s.codec.Decode(base, row.EventName, event.Payload(row.Payload), row.SchemaVersion)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, Envelope{
			SequenceID:    row.SequenceID,
			Event:         e,
			EventID:       row.EventID.String(),
			EventName:     row.EventName,
			AggregateID:   row.AggregateID,
			AggregateType: row.AggregateType,
			SchemaVersion: row.SchemaVersion,
			Version:       row.Version,
			Payload:       e.Payload(),
			Metadata:      event.Metadata(row.Metadata),
			OccurredOn:    row.OccurredOn,
			RecordedOn:    row.RecordedOn,
		})
	}
	return envelopes, nil
}

// Events strips the envelopes.
func Events(envelopes []Envelope) []event.Event {
	out := make([]event.Event, len(envelopes))
	for i, env := range envelopes {
		out[i] = env.Event
	}
	return out
}
