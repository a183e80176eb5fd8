package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"taskbroker/internal/api"
	"taskbroker/internal/config"

	"github.com/rs/zerolog/log"
)

type Config struct {
	// API also serves the HTTP endpoints from this process.
	API  bool
	Port int
}

// Run builds the pipeline and blocks until SIGINT or SIGTERM, then stops
// intake and drains the tasks already handed to the pool.
func Run(cfg Config, appCfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := Build(ctx, appCfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Start(ctx)

	var serveErr error
	if cfg.API {
		srv := NewAPIServer(rt)
		serveErr = srv.Run(ctx, cfg.Port)
		stop()
	} else {
		<-ctx.Done()
	}

	log.Info().Msg("worker is shutting down...")
	rt.Wait()
	return serveErr
}

// NewAPIServer exposes the runtime over HTTP with the worker counters attached.
func NewAPIServer(rt *Runtime) *api.Server {
	deps := api.Deps{
		Producer: rt.Producer,
		Store:    rt.Store,
		Selector: rt.Selector,
		Metrics:  rt.Worker,
		Capture:  rt.Capture,
		List:     rt.List,
		Queue:    rt.List.Queue(),
		Redis:    rt.Redis,
	}
	if rt.Kafka != nil {
		deps.Kafka = rt.Kafka
	}
	srv := api.NewServer(deps)
	srv.ReadTimeout = rt.Cfg.HTTP.ReadTimeout
	srv.WriteTimeout = rt.Cfg.HTTP.WriteTimeout
	srv.ShutdownTimeout = rt.Cfg.HTTP.ShutdownTimeout
	return srv
}
