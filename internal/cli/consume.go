package cli

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaskular/vaskular-backend/internal/config"
	"github.com/vaskular/vaskular-backend/internal/queue"
)

// NewConsumeCommand creates the consume command, which writes every
// scores.recorded event to a log file until interrupted.
func NewConsumeCommand(_ *RootOptions) *cobra.Command {
	var logDir string
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume scores.recorded events into a log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			url := config.AMQPURL()
			log.Printf("consuming %s into %s", queue.ScoresQueueName, logDir)
			err := queue.StartScoresConsumer(ctx, url, logDir)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&logDir, "log-dir", "logs", "directory receiving "+queue.ScoresLogFile)
	return cmd
}
