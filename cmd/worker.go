package cmd

import (
	"taskbroker/internal/worker"
	"time"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var (
		poolSize    int
		baseBackoff time.Duration
		maxBackoff  time.Duration
	)

	var command = &cobra.Command{
		Use:   "worker",
		Short: "Start headless worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cmd.Flags().Changed("pool-size") {
				cfg.Worker.PoolSize = poolSize
			}
			if cmd.Flags().Changed("base-backoff") {
				cfg.Worker.BaseBackoff = baseBackoff
			}
			if cmd.Flags().Changed("max-backoff") {
				cfg.Worker.MaxBackoff = maxBackoff
			}
			return worker.Run(worker.Config{}, cfg)
		},
	}

	command.Flags().IntVar(&poolSize, "pool-size", 10, "Number of concurrent task executions")
	command.Flags().DurationVar(&baseBackoff, "base-backoff", 500*time.Millisecond, "Base backoff duration")
	command.Flags().DurationVar(&maxBackoff, "max-backoff", 30*time.Second, "Max backoff duration")

	return command
}
