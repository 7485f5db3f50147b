package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
)

type EventHandler func(ctx context.Context, msg EventMessage) error

// EventSubscriber decodes broker payloads into EventMessages for a handler.
type EventSubscriber struct {
	broker Broker
	logger *logger.Logger
}

func NewEventSubscriber(broker Broker, log *logger.Logger) *EventSubscriber {
	return &EventSubscriber{broker: broker, logger: log}
}

// Run subscribes to every named event and blocks until ctx is cancelled and
// all subscriptions have drained. Handler errors are logged and skipped.
// If a subscription fails, the ones already open are cancelled and drained
// before the error is returned.
func (s *EventSubscriber) Run(ctx context.Context, eventNames []string, handler EventHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, name := range eventNames {
		messages, err := s.broker.Subscribe(ctx, name)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to subscribe to %s: %w", name, err)
		}

		wg.Add(1)
		go func(name string, messages <-chan []byte) {
			defer wg.Done()
			for raw := range messages {
				var msg EventMessage
				if err := json.Unmarshal(raw, &msg); err != nil {
					s.logger.Error(err, "Failed to decode event message", "channel", name)
					continue
				}
				if err := handler(ctx, msg); err != nil {
					// Log error but continue processing
					s.logger.Error(err, "Event handler failed", "event_id", msg.EventID, "event_name", msg.EventName)
				}
			}
		}(name, messages)
	}

	wg.Wait()
	return nil
}
