package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/metrics"
)

// BatchFunc has the shape of OutboxProcessor.ProcessBatch.
type BatchFunc func(ctx context.Context, limit int) (BatchResult, error)

type BatchMiddleware func(next BatchFunc) BatchFunc

// ChainBatch applies mws around final; mws[0] runs first.
func ChainBatch(final BatchFunc, mws ...BatchMiddleware) BatchFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}
	return final
}

// LoggingMiddleware logs the sent / retrying / failed summary of every batch.
func LoggingMiddleware(log *logger.Logger) BatchMiddleware {
	return func(next BatchFunc) BatchFunc {
		return func(ctx context.Context, limit int) (BatchResult, error) {
			start := time.Now()
			result, err := next(ctx, limit)

			fields := []interface{}{
				"limit", limit,
				"fetched", result.Fetched,
				"sent", result.Sent,
				"retrying", result.Retrying,
				"failed", result.Failed,
				"skipped", result.Skipped,
				"duration", time.Since(start).String(),
			}
			switch {
			case err != nil:
				log.Error(err, "Outbox batch aborted", fields...)
			case result.Fetched > 0:
				log.Info("Outbox batch processed", fields...)
			default:
				log.Debug("Outbox batch empty", fields...)
			}
			return result, err
		}
	}
}

func MetricsMiddleware(m *metrics.Metrics) BatchMiddleware {
	return func(next BatchFunc) BatchFunc {
		return func(ctx context.Context, limit int) (BatchResult, error) {
			timer := prometheus.NewTimer(m.OutboxProcessingLatency)
			defer timer.ObserveDuration()

			result, err := next(ctx, limit)
			m.OutboxQueueSize.Set(float64(result.Fetched))
			m.OutboxEventsSent.Add(float64(result.Sent))
			m.OutboxEventsRetrying.Add(float64(result.Retrying))
			m.OutboxEventsFailed.Add(float64(result.Failed))
			return result, err
		}
	}
}

// TracingMiddleware opens one span per batch. A nil tracer uses the global provider.
func TracingMiddleware(tracer trace.Tracer) BatchMiddleware {
	if tracer == nil {
		tracer = otel.Tracer("outbox")
	}
	return func(next BatchFunc) BatchFunc {
		return func(ctx context.Context, limit int) (BatchResult, error) {
			ctx, span := tracer.Start(ctx, "outbox.ProcessBatch", trace.WithAttributes(
				attribute.Int("outbox.limit", limit),
			))
			defer span.End()

			result, err := next(ctx, limit)
			span.SetAttributes(
				attribute.Int("outbox.sent", result.Sent),
				attribute.Int("outbox.retrying", result.Retrying),
				attribute.Int("outbox.failed", result.Failed),
			)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return result, err
		}
	}
}
