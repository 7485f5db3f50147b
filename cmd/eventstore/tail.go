package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/messaging"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log events published on the broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.broker == nil {
			return errors.New("redis.url is not configured")
		}

		names := args
		if len(names) == 0 {
			names = a.events.Names()
		}
		subscriber := messaging.NewEventSubscriber(a.broker, a.log)
		return subscriber.Run(ctx, names, func(_ context.Context, msg messaging.EventMessage) error {
			a.log.Info("Event received",
				"event_id", msg.EventID,
				"event_name", msg.EventName,
				"aggregate_id", msg.AggregateID,
				"version", msg.Version,
				"correlation_id", msg.Metadata[event.MetaCorrelationID],
			)
			return nil
		})
	},
}
