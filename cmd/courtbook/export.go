package main

import (
	"github.com/spf13/cobra"

	"github.com/example/court-reservations/internal/notify"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print every stored reservation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			loc, err := cfg.Court.Location()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := openMigratedStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			reservations, err := st.ListReservations(ctx)
			if err != nil {
				return err
			}
			exporter := notify.Exporter{Location: loc, Renderer: notify.NewICSRenderer(cfg.Court.Name, nil)}
			return exporter.Export(cmd.OutOrStdout(), format, reservations)
		},
	}

	cmd.Flags().StringVar(&format, "format", notify.FormatText, "output format: text, csv or ics")
	return cmd
}
