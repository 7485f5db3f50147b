package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
)

// EventMessage is the wire form of a committed event.
type EventMessage struct {
	EventID       string            `json:"event_id"`
	EventName     string            `json:"event_name"`
	AggregateID   string            `json:"aggregate_id"`
	Version       int               `json:"version"`
	SchemaVersion int               `json:"schema_version"`
	Payload       map[string]any    `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	OccurredOn    time.Time         `json:"occurred_on"`
}

// EventPublisher announces committed events on the broker, one channel per
// event name. Publication is best effort: the events are already durable.
type EventPublisher struct {
	broker Broker
	codec  *event.Codec
	logger *logger.Logger
}

func NewEventPublisher(broker Broker, codec *event.Codec, log *logger.Logger) *EventPublisher {
	return &EventPublisher{broker: broker, codec: codec, logger: log}
}

// Publish sends events that were appended at firstVersion, firstVersion+1, ...
// Every event is attempted; the failures are joined.
func (p *EventPublisher) Publish(ctx context.Context, events []event.Event, firstVersion int, metadata event.Metadata) error {
	var errs []error
	for i, e := range events {
		name, schemaVersion, payload, err := p.codec.Encode(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		msg := EventMessage{
			EventID:       e.EventID().String(),
			EventName:     name,
			AggregateID:   e.AggregateID(),
			Version:       firstVersion + i,
			SchemaVersion: schemaVersion,
			Payload:       payload,
			Metadata:      metadata,
			OccurredOn:    e.OccurredOn(),
		}
		if err := p.broker.Publish(ctx, name, msg); err != nil {
			p.logger.Warn("Failed to publish event", "event_id", msg.EventID, "event_name", name, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		p.logger.Debug("Published event", "event_id", msg.EventID, "event_name", name)
	}
	return errors.Join(errs...)
}
