package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"taskbroker/internal/capture"
	"taskbroker/internal/config"
	"taskbroker/internal/infra/kafkaq"
	"taskbroker/internal/infra/memstore"
	"taskbroker/internal/infra/postgres"
	"taskbroker/internal/infra/redisq"
	"taskbroker/internal/ports"
	"taskbroker/internal/usecase"
	"taskbroker/pkg/workerpool"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Runtime holds every component of the task pipeline for one process.
type Runtime struct {
	Cfg *config.Config

	Redis    *redisq.Client
	Store    ports.TaskStore
	Capture  ports.MessageCapture
	List     *redisq.ListBroker
	Stream   *kafkaq.StreamBroker
	Kafka    *kafkaq.Inspector
	Selector *usecase.BrokerSelector
	Producer usecase.Producer
	Pool     *workerpool.Pool
	Worker   *usecase.Worker
	Poller   *usecase.Poller

	pg     *pgxpool.Pool
	reader io.Closer
	wg     sync.WaitGroup
}

// Build connects to the configured substrates and wires the pipeline.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Cfg: cfg}

	rt.Redis = redisq.New(cfg.Redis)
	if err := rt.Redis.ConnectRetry(ctx, 5, cfg.Worker.BaseBackoff, cfg.Worker.MaxBackoff); err != nil {
		return nil, err
	}
	rt.Capture = redisq.NewStreamCapture(rt.Redis)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.Store)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool, "up"); err != nil {
			pool.Close()
			rt.Close()
			return nil, err
		}
		rt.pg = pool
		rt.Store = postgres.NewTaskStore(pool)
	case config.DriverRedis:
		rt.Store = redisq.NewTaskStore(rt.Redis)
	case config.DriverMemory:
		// single process: keep the inspector buffer in memory too
		rt.Store = memstore.New()
		rt.Capture = capture.NewRing(int(cfg.Redis.CaptureLen))
	default:
		rt.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	brokers := map[string]ports.Broker{}
	rt.List = redisq.NewListBroker(rt.Redis, rt.Capture)
	brokers[rt.List.Name()] = rt.List
	if cfg.Kafka.Enabled {
		rt.Stream = kafkaq.NewStreamBroker(cfg.Kafka, rt.Capture)
		rt.Kafka = kafkaq.NewInspector(cfg.Kafka)
		brokers[rt.Stream.Name()] = rt.Stream
	}

	// only registered brokers can be selected
	known := slices.Sorted(maps.Keys(brokers))
	sel, err := usecase.NewBrokerSelector(cfg.Broker.Type, known...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Selector = sel

	rt.Producer = usecase.Producer{
		Store:      rt.Store,
		Brokers:    brokers,
		Selector:   rt.Selector,
		List:       rt.List,
		ListBroker: rt.List.Name(),
	}

	rt.Pool = workerpool.New(cfg.Worker.PoolSize)
	log.Info().Int("pool_size", cfg.Worker.PoolSize).Msg("initialized task executor")
	rt.Worker = usecase.NewWorker(rt.Store, rt.Pool, usecase.SimulatedExecutor(cfg.Worker.MinWork, cfg.Worker.MaxWork), rt.Capture)
	rt.Poller = usecase.NewPoller(rt.List, rt.Worker, rt.List.Queue(), cfg.Worker.PollInterval)

	return rt, nil
}

// Start launches the capture writer and both intake paths.
func (rt *Runtime) Start(ctx context.Context) {
	ctx = log.With().Str("component", "worker").Logger().WithContext(ctx)

	if sc, ok := rt.Capture.(*redisq.StreamCapture); ok {
		rt.goRun(ctx, "capture", sc.Run)
	}
	rt.goRun(ctx, "poller", rt.Poller.Run)

	if rt.Stream != nil {
		reader := kafkaq.NewReader(rt.Cfg.Kafka)
		rt.reader = reader
		consumer := kafkaq.Consumer{
			R:           reader,
			Handler:     rt.Worker.HandleEvent,
			BaseBackoff: rt.Cfg.Worker.BaseBackoff,
			MaxBackoff:  rt.Cfg.Worker.MaxBackoff,
		}
		rt.goRun(ctx, "kafka consumer", consumer.Run)
	}

	log.Ctx(ctx).Info().Str("broker", rt.Selector.Get()).Msg("task worker started")
}

func (rt *Runtime) goRun(ctx context.Context, name string, run func(context.Context) error) {
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Ctx(ctx).Error().Err(err).Msgf("%s stopped with error", name)
		}
	}()
}

// Wait blocks until the intake goroutines return, then drains the pool.
func (rt *Runtime) Wait() {
	rt.wg.Wait()

	start := time.Now()
	log.Info().Int("queued", rt.Pool.Queued()).Msg("shutting down task executor")
	rt.Pool.StopWait()
	log.Info().Dur("took", time.Since(start)).
		Int64("processed", rt.Worker.ProcessedCount()).
		Int64("failed", rt.Worker.FailedCount()).
		Msg("task executor shutdown complete")
}

func (rt *Runtime) Close() {
	if rt.reader != nil {
		_ = rt.reader.Close()
	}
	if rt.Stream != nil {
		_ = rt.Stream.Close()
	}
	if rt.pg != nil {
		rt.pg.Close()
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
}
