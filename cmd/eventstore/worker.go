package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the outbox processor and cleanup loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		processor, err := a.outboxProcessor()
		if err != nil {
			return err
		}
		wg := a.startWorkers(ctx, processor)

		<-ctx.Done()
		a.log.Info("Shutting down...")
		wg.Wait()
		return nil
	},
}

// startWorkers runs the processor and cleanup loops until ctx is done.
func (a *app) startWorkers(ctx context.Context, processor *worker.OutboxProcessor) *sync.WaitGroup {
	cleanup := a.cleanupWorker()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	a.log.Info("Outbox worker started", "batch_size", a.cfg.Outbox.BatchSize, "poll_interval", a.cfg.Outbox.PollInterval.String(), "pid", os.Getpid())
	return &wg
}
