package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/health"
	outboxHandler "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/outbox"
	prometheusHandler "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/prometheus"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/stream"
	userHandler "github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/handler/user"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/middleware"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/router"
	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/auth"
)

const shutdownTimeout = 5 * time.Second

var withWorker bool

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		jwtSvc, err := auth.NewJWTService(a.cfg.Auth.Secret, a.cfg.Auth.Issuer)
		if err != nil {
			return fmt.Errorf("jwt: %w", err)
		}
		processor, err := a.outboxProcessor()
		if err != nil {
			return err
		}

		r := router.NewRouter(middleware.NewAuthMiddleware(jwtSvc), router.Handlers{
			Health:  health.NewHandler(a.db),
			Metrics: prometheusHandler.New(a.cfg.Metrics.Namespace, a.registry),
			Streams: stream.NewHandler(a.store),
			Outbox:  outboxHandler.NewHandler(a.outbox, processor),
			Users:   userHandler.NewHandler(a.userService()),
		}, a.log)

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:      r.Setup(),
			ReadTimeout:  a.cfg.Server.ReadTimeout,
			WriteTimeout: a.cfg.Server.WriteTimeout,
		}

		// The manual trigger and the ticker share one processor, so their
		// batches never overlap. Another process needs claiming for that.
		workers := &sync.WaitGroup{}
		if withWorker {
			workers = a.startWorkers(ctx, processor)
		} else if a.cfg.Outbox.ClaimLease == 0 {
			a.log.Warn("Outbox claiming is off; set outbox.claim_lease when a separate worker also processes the outbox")
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("Starting HTTP server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			a.log.Info("Shutting down server...")
		case err := <-errCh:
			if err != nil {
				a.log.Error(err, "HTTP server exited")
			}
			stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error(err, "Server forced to shutdown")
		}
		workers.Wait()

		a.log.Info("Server exited properly")
		return nil
	},
}

func init() {
	apiCmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the outbox processor in this process")
}
