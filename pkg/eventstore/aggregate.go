package eventstore

import (
	"context"
	"fmt"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
)

// Aggregate is an entity rebuilt by replaying its stream.
type Aggregate interface {
	AggregateID() string
	// Version is the stream version the aggregate was loaded at.
	Version() int
	Uncommitted() []event.Event
	// Replay applies a stored event without recording it.
	Replay(e event.Event, version int) error
	// MarkCommitted advances the version past the uncommitted events and clears them.
	MarkCommitted()
}

// AggregateRoot tracks version and uncommitted events. Concrete aggregates
// embed it and hand it their apply function.
type AggregateRoot struct {
	id      string
	version int
	changes []event.Event
	apply   func(event.Event) error
}

func NewAggregateRoot(apply func(event.Event) error) *AggregateRoot {
	return &AggregateRoot{apply: apply}
}

func (a *AggregateRoot) AggregateID() string        { return a.id }
func (a *AggregateRoot) Version() int               { return a.version }
func (a *AggregateRoot) Uncommitted() []event.Event { return a.changes }
func (a *AggregateRoot) SetID(id string)            { a.id = id }

// Record applies a new event and queues it for the next save.
func (a *AggregateRoot) Record(e event.Event) error {
	if err := a.apply(e); err != nil {
		return fmt.Errorf("apply %s: %w", e.EventName(), err)
	}
	if a.id == "" {
		a.id = e.AggregateID()
	}
	a.changes = append(a.changes, e)
	return nil
}

func (a *AggregateRoot) Replay(e event.Event, version int) error {
	if version != a.version+1 {
		return fmt.Errorf("replay %s: version %d does not follow %d", e.EventName(), version, a.version)
	}
	if err := a.apply(e); err != nil {
		return fmt.Errorf("replay %s: %w", e.EventName(), err)
	}
	if a.id == "" {
		a.id = e.AggregateID()
	}
	a.version = version
	return nil
}

func (a *AggregateRoot) MarkCommitted() {
	a.version += len(a.changes)
	a.changes = nil
}

// Repository loads and saves one kind of aggregate through an EventStore.
type Repository[T Aggregate] struct {
	store    *EventStore
	newEmpty func() T
}

func NewRepository[T Aggregate](store *EventStore, newEmpty func() T) *Repository[T] {
	return &Repository[T]{store: store, newEmpty: newEmpty}
}

// Load replays the aggregate's stream. An empty stream is reported as not found.
func (r *Repository[T]) Load(ctx context.Context, id string) (T, error) {
	aggregate := r.newEmpty()

	envelopes, err := r.store.ReadStream(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(envelopes) == 0 {
		var zero T
		return zero, apperrors.NewNotFound("aggregate "+id, nil)
	}

	for _, env := range envelopes {
		if err := aggregate.Replay(env.Event, env.Version); err != nil {
			var zero T
			return zero, err
		}
	}
	return aggregate, nil
}

// Save appends the uncommitted events at the version the aggregate was loaded at.
func (r *Repository[T]) Save(ctx context.Context, aggregate T) error {
	changes := aggregate.Uncommitted()
	if len(changes) == 0 {
		return nil
	}

	if err := r.store.Append(ctx, aggregate.AggregateID(), changes, aggregate.Version()); err != nil {
		return err
	}

	aggregate.MarkCommitted()
	return nil
}
