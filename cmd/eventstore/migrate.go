package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/internal/repository/sqlstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the events and outbox tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := sqlstore.Migrate(cmd.Context(), a.db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.log.Info("Migrations applied", "driver", a.cfg.Database.Driver)
		return nil
	},
}
