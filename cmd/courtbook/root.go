package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/court-reservations/internal/config"
	"github.com/example/court-reservations/internal/logging"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "courtbook",
		Short:         "Hourly reservations for a shared tennis court",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional .env file loaded before reading the environment")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// load reads configuration and builds the process logger, which writes to the
// command's stderr so stdout stays free for command output.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithFile(o.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat).With("service", "courtbook")
	return cfg, logger, nil
}
