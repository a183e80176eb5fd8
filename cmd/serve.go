package cmd

import (
	"taskbroker/internal/worker"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		port         int
		poolSize     int
		pollInterval time.Duration
		brokerType   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start API server with an embedded worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}
			if cmd.Flags().Changed("pool-size") {
				cfg.Worker.PoolSize = poolSize
			}
			if cmd.Flags().Changed("poll-interval") {
				cfg.Worker.PollInterval = pollInterval
			}
			if cmd.Flags().Changed("broker") {
				cfg.Broker.Type = brokerType
			}

			log.Info().Msgf("API server using broker: %s, queue: %s, topic: %s", cfg.Broker.Type, cfg.Redis.QueueName, cfg.Kafka.Topic)
			return worker.Run(worker.Config{API: true, Port: cfg.HTTP.Port}, cfg)
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	command.Flags().IntVar(&poolSize, "pool-size", 10, "Number of concurrent task executions")
	command.Flags().DurationVar(&pollInterval, "poll-interval", 100*time.Millisecond, "Redis queue poll interval")
	command.Flags().StringVar(&brokerType, "broker", "redis", "Initially active broker (redis or kafka)")
	return command
}
