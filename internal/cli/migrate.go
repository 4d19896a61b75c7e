package cli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/vaskular/vaskular-backend/internal/config"
)

// NewMigrateCommand creates the migrate command, which creates the schema
// when absent and exits.  It is safe to run against an initialized database.
func NewMigrateCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the health_scores table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, _, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			log.Printf("schema ready (db=%s)", cfg.DBDriver)
			return nil
		},
	}
}
