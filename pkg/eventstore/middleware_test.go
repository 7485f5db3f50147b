package eventstore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/metrics"
)

func stubAppend(err error) AppendFunc {
	return func(context.Context, string, []event.Event, int) error { return err }
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next AppendFunc) AppendFunc {
			return func(ctx context.Context, id string, events []event.Event, v int) error {
				order = append(order, name+">")
				err := next(ctx, id, events, v)
				order = append(order, "<"+name)
				return err
			}
		}
	}

	fn := Chain(func(context.Context, string, []event.Event, int) error {
		order = append(order, "append")
		return nil
	}, tag("a"), tag("b"))

	require.NoError(t, fn(context.Background(), "A", nil, 0))
	assert.Equal(t, []string{"a>", "b>", "append", "<b", "<a"}, order)
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	events := []event.Event{joined("A", "a@example.com"), approved("A", "admin")}

	require.NoError(t, MetricsMiddleware(m)(stubAppend(nil))(context.Background(), "A", events, 0))
	conflict := apperrors.NewConcurrencyConflict("A", 0, 2)
	assert.ErrorIs(t, MetricsMiddleware(m)(stubAppend(conflict))(context.Background(), "A", events, 0), conflict)
	assert.Error(t, MetricsMiddleware(m)(stubAppend(errors.New("disk full")))(context.Background(), "A", events, 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AppendTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AppendTotal.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AppendTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AppendConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsAppended.WithLabelValues("member.joined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsAppended.WithLabelValues("member.approved")))
}

func TestTracingMiddlewareRecordsErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	err := TracingMiddleware(tracer)(stubAppend(apperrors.NewConcurrencyConflict("A", 0, 1)))(
		context.Background(), "A", []event.Event{joined("A", "a@example.com")}, 0)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "eventstore.Append", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := map[string]interface{}{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "A", attrs["aggregate.id"])
	assert.Equal(t, int64(1), attrs["eventstore.events"])
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(&logger.Config{Level: logger.DebugLevel, Output: &buf, JSON: true})

	require.NoError(t, LoggingMiddleware(log)(stubAppend(nil))(context.Background(), "A", nil, 0))
	assert.Contains(t, buf.String(), "Events appended")

	buf.Reset()
	_ = LoggingMiddleware(log)(stubAppend(apperrors.NewConcurrencyConflict("A", 0, 1)))(context.Background(), "A", nil, 0)
	assert.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	_ = LoggingMiddleware(log)(stubAppend(errors.New("disk full")))(context.Background(), "A", nil, 0)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "disk full")
}

func TestStoreAppliesMiddlewareAroundAppend(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	store := newTestStore(t, WithMiddleware(MetricsMiddleware(m)))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "A", []event.Event{joined("A", "a@example.com")}, 0))
	require.Error(t, store.Append(ctx, "A", []event.Event{approved("A", "x")}, 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AppendConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AppendTotal.WithLabelValues("success")))
}
