package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var processLimit int

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one outbox batch and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		processor, err := a.outboxProcessor()
		if err != nil {
			return err
		}
		limit := processLimit
		if limit <= 0 {
			limit = a.cfg.Outbox.BatchSize
		}

		result, err := processor.ProcessBatch(cmd.Context(), limit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "maximum records to process (default outbox.batch_size)")
}
