package cmd

import (
	"taskbroker/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Run() {
	var command = &cobra.Command{
		Use:   "taskbroker",
		Short: "Task broker with switchable Redis and Kafka transports",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	command.AddCommand(serveCmd())
	command.AddCommand(workerCmd())
	command.AddCommand(migrateCmd())

	if err := command.Execute(); err != nil {
		log.Fatal().Msgf("failed to execute command, err: %v", err.Error())
	}
}

// loadConfig parses the environment and configures logging before any command runs.
func loadConfig() *config.Config {
	cfg := config.Load()
	config.SetupLogging(cfg.App)
	return cfg
}
