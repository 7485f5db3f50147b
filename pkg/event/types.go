package event

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event recorded in an aggregate's stream.
type Event interface {
	EventID() uuid.UUID
	AggregateID() string
	// EventName is the stable storage name, e.g. "user.created". Never renamed after release.
	EventName() string
	OccurredOn() time.Time
	// Payload flattens the event's own fields; the envelope fields above are not included.
	Payload() Payload
}

// Base carries the envelope fields every event shares. Domain events embed it.
type Base struct {
	ID         uuid.UUID
	Aggregate  string
	OccurredAt time.Time
}

// NewBase stamps a fresh event id and the current time.
func NewBase(aggregateID string) Base {
	return Base{
		ID:         uuid.New(),
		Aggregate:  aggregateID,
		OccurredAt: time.Now().UTC(),
	}
}

func (b Base) EventID() uuid.UUID    { return b.ID }
func (b Base) AggregateID() string   { return b.Aggregate }
func (b Base) OccurredOn() time.Time { return b.OccurredAt }

// BaseOf extracts the envelope fields of any event.
func BaseOf(e Event) Base {
	return Base{ID: e.EventID(), Aggregate: e.AggregateID(), OccurredAt: e.OccurredOn()}
}

// Metadata holds trace attachments. The store never interprets it.
type Metadata map[string]string

const (
	MetaCorrelationID = "correlation_id"
	MetaCausationID   = "causation_id"
	MetaActorID       = "actor_id"
)

func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type metadataKey struct{}

// WithMetadata attaches metadata to every event appended under ctx.
// Keys already present on ctx are kept unless md overrides them.
func WithMetadata(ctx context.Context, md Metadata) context.Context {
	merged := MetadataFrom(ctx).Clone()
	if merged == nil {
		merged = make(Metadata, len(md))
	}
	for k, v := range md {
		merged[k] = v
	}
	return context.WithValue(ctx, metadataKey{}, merged)
}

// MetadataFrom returns the metadata attached to ctx, or nil.
func MetadataFrom(ctx context.Context) Metadata {
	md, _ := ctx.Value(metadataKey{}).(Metadata)
	return md
}

// AggregateTypeOf derives the coarse category from an event name: "user.created" -> "user".
func AggregateTypeOf(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
