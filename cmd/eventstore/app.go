package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/config"
	domain "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/domain/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/email"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository/sqlstore"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/service/notification"
	userService "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/service/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/eventstore"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/logger"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/messaging"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/messaging/redis"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/metrics"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/validator"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/worker"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracer   *sdktrace.TracerProvider

	db       *sqlx.DB
	base     sqlstore.BaseRepository
	outbox   repository.OutboxRepository
	events   *event.Registry
	codec    *event.Codec
	store    *eventstore.EventStore
	broker   messaging.Broker
	closers  []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      logger.FromConfig(cfg.Log.Level, cfg.Log.Format),
		registry: prometheus.NewRegistry(),
		tracer:   sdktrace.NewTracerProvider(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewMetrics(cfg.Metrics.Namespace, a.registry)
	otel.SetTracerProvider(a.tracer)

	a.db, err = sqlstore.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connect: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)

	a.base = sqlstore.NewBaseRepository(a.db)
	a.outbox = sqlstore.NewOutboxRepository(a.base)

	a.events = event.NewRegistry()
	upcasters := event.NewUpcasterChain()
	if err := domain.RegisterEvents(a.events, upcasters); err != nil {
		a.Close()
		return nil, fmt.Errorf("register events: %w", err)
	}
	a.codec = event.NewCodec(a.events, upcasters)

	a.store = eventstore.New(sqlstore.NewEventRepository(a.base), a.base, a.codec,
		eventstore.WithMiddleware(
			eventstore.LoggingMiddleware(a.log),
			eventstore.MetricsMiddleware(a.metrics),
			eventstore.TracingMiddleware(a.tracer.Tracer("eventstore")),
		),
	)

	if cfg.Redis.URL != "" {
		a.broker, err = redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), a.log, a.metrics)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		a.closers = append(a.closers, a.broker.Close)
	}

	return a, nil
}

func (a *app) outboxProcessor() (*worker.OutboxProcessor, error) {
	transport, err := email.NewSMTPTransport(a.cfg.SMTP.ToTransportConfig())
	if err != nil {
		return nil, fmt.Errorf("smtp transport: %w", err)
	}
	return worker.NewOutboxProcessor(a.outbox, transport, a.cfg.Outbox.ToWorkerConfig(), a.log, a.metrics,
		worker.LoggingMiddleware(a.log),
		worker.MetricsMiddleware(a.metrics),
		worker.TracingMiddleware(a.tracer.Tracer("outbox")),
	), nil
}

func (a *app) cleanupWorker() *worker.OutboxCleanupWorker {
	return worker.NewOutboxCleanupWorker(a.outbox, a.cfg.Outbox.ToCleanupConfig(), a.log, a.metrics)
}

func (a *app) userService() *userService.Service {
	reactor := notification.NewService(a.outbox, email.NewRenderer(), validator.New(), a.cfg.Notification.AdminRecipients, a.log)

	var opts []userService.Option
	if a.broker != nil {
		opts = append(opts, userService.WithPublisher(messaging.NewEventPublisher(a.broker, a.codec, a.log)))
	}
	return userService.NewService(a.store, a.base, reactor, a.log, opts...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error(err, "Failed to close resource")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = a.tracer.Shutdown(ctx)
}
