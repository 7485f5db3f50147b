package eventstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/metrics"
)

// AppendFunc has the shape of EventStore.Append.
type AppendFunc func(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) error

// Middleware wraps an AppendFunc with cross-cutting behaviour.
type Middleware func(next AppendFunc) AppendFunc

// Chain applies mws around final; mws[0] runs first.
func Chain(final AppendFunc, mws ...Middleware) AppendFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}
	return final
}

func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next AppendFunc) AppendFunc {
		return func(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) error {
			start := time.Now()
			err := next(ctx, aggregateID, events, expectedVersion)

			log := log.WithContext(ctx)
			fields := []interface{}{
				"aggregate_id", aggregateID,
				"expected_version", expectedVersion,
				"events", len(events),
				"duration", time.Since(start).String(),
			}
			switch {
			case err == nil:
				log.Debug("Events appended", fields...)
			case apperrors.Is(err, apperrors.ErrConcurrencyConflict):
				log.Warn("Append rejected by concurrency check", append(fields, "error", err.Error())...)
			default:
				log.Error(err, "Failed to append events", fields...)
			}
			return err
		}
	}
}

func MetricsMiddleware(m *metrics.Metrics) Middleware {
	return func(next AppendFunc) AppendFunc {
		return func(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) error {
			timer := prometheus.NewTimer(m.AppendLatency)
			err := next(ctx, aggregateID, events, expectedVersion)
			timer.ObserveDuration()

			switch {
			case err == nil:
				m.AppendTotal.WithLabelValues("success").Inc()
				for _, e := range events {
					m.EventsAppended.WithLabelValues(e.EventName()).Inc()
				}
			case apperrors.Is(err, apperrors.ErrConcurrencyConflict):
				m.AppendTotal.WithLabelValues("conflict").Inc()
				m.AppendConflicts.Inc()
			default:
				m.AppendTotal.WithLabelValues("error").Inc()
			}
			return err
		}
	}
}

// TracingMiddleware opens one span per Append. A nil tracer uses the global provider.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("eventstore")
	}
	return func(next AppendFunc) AppendFunc {
		return func(ctx context.Context, aggregateID string, events []event.Event, expectedVersion int) error {
			ctx, span := tracer.Start(ctx, "eventstore.Append", trace.WithAttributes(
				attribute.String("aggregate.id", aggregateID),
				attribute.Int("eventstore.expected_version", expectedVersion),
				attribute.Int("eventstore.events", len(events)),
			))
			defer span.End()

			err := next(ctx, aggregateID, events, expectedVersion)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}
