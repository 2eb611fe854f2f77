package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/court-reservations/internal/persistence/sqlite"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := openMigratedStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if db, ok := st.(*sqlite.Storage); ok {
				status, err := db.MigrationStatus(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "schema at version %s (%d applied, %d pending)\n", status.CurrentVersion, len(status.Applied), len(status.Pending))
				return nil
			}
			fmt.Fprintf(out, "%s store migrated\n", cfg.StoreDriver)
			return nil
		},
	}
}
