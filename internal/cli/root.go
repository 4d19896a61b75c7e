// Package cli wires configuration, storage and transport into the vaskular
// command line.
package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vaskular/vaskular-backend/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFiles []string
}

// NewRootCommand creates the root command.  Running it without a subcommand
// starts the HTTP server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "vaskular",
		Short:         "Vaskular health-score backend",
		Long:          "Records wellness scores per user and generates recovery plans from the latest ones.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return errors.Wrap(config.LoadDotEnv(opts.EnvFiles...), "load env file")
		},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "dotenv files to load (default .env when present)")

	serve := NewServeCommand(opts)
	cmd.RunE = serve.RunE
	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewConsumeCommand(opts))

	return cmd
}
