package cmd

import (
	"context"
	"taskbroker/internal/infra/postgres"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var command = &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect the task table migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			ctx := context.Background()
			pool, err := postgres.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer pool.Close()

			return postgres.Migrate(ctx, pool, direction)
		},
	}

	return command
}
