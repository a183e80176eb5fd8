package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"taskbroker/internal/capture"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"time"

	"github.com/rs/zerolog/log"
)

const progressEvery = 10000

// Executor runs the body of a task. A returned error (or a panic) fails it.
type Executor func(ctx context.Context, t domain.Task) error

// Pool is a bounded set of workers; Submit must not block on execution.
type Pool interface {
	Submit(job func()) error
}

// Worker takes task references from either broker, runs them on the shared
// pool and records the outcome.
type Worker struct {
	Store   ports.TaskStore
	Pool    Pool
	Execute Executor
	Capture ports.MessageCapture
	Now     func() time.Time

	processed atomic.Int64
	failed    atomic.Int64
}

func NewWorker(store ports.TaskStore, pool Pool, exec Executor, mc ports.MessageCapture) *Worker {
	return &Worker{Store: store, Pool: pool, Execute: exec, Capture: mc}
}

func (w *Worker) ProcessedCount() int64 { return w.processed.Load() }
func (w *Worker) FailedCount() int64    { return w.failed.Load() }

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Dispatch queues processing of id on the pool. Queued work outlives the
// intake context so a draining pool can still persist outcomes.
func (w *Worker) Dispatch(ctx context.Context, id int64) error {
	jobCtx := context.WithoutCancel(ctx)
	return w.Pool.Submit(func() { w.Process(jobCtx, id) })
}

// HandleRef accepts a reference popped from the poll broker.
func (w *Worker) HandleRef(ctx context.Context, source string, ref any) error {
	id, err := domain.ParseTaskRef(ref)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("queue", source).Msg("failed to parse task id, dropped")
		return nil
	}

	w.capture(ctx, capture.SourceRedis, source, strconv.FormatInt(id, 10), fmt.Sprintf("Task ID: %d", id))
	return w.Dispatch(ctx, id)
}

// HandleEvent accepts an event pushed by the stream broker.
func (w *Worker) HandleEvent(ctx context.Context, d ports.Delivery) error {
	log.Ctx(ctx).Debug().Stringer("event", d.Event).Msg("received task from kafka")

	payload, err := json.Marshal(d.Event)
	if err != nil {
		payload = []byte(d.Event.String())
	}
	w.capture(ctx, capture.SourceKafka, d.Topic, fmt.Sprintf("P-%d/O-%d", d.Partition, d.Offset), string(payload))

	if d.Event.TaskID <= 0 {
		log.Ctx(ctx).Error().Int("partition", d.Partition).Int64("offset", d.Offset).
			Msg("task event without id, dropped")
		return nil
	}
	return w.Dispatch(ctx, d.Event.TaskID)
}

func (w *Worker) capture(ctx context.Context, source, target, id, payload string) {
	if w.Capture != nil {
		w.Capture.Capture(ctx, ports.DirectionConsumed, source, target, id, payload, time.Now())
	}
}

// Process runs one task through PROCESSING to a terminal state. Missing
// records and references to tasks that are no longer PENDING are dropped.
func (w *Worker) Process(ctx context.Context, id int64) {
	logger := log.Ctx(ctx).With().Int64("task_id", id).Logger()

	t, err := w.Store.FindByID(ctx, id)
	if errors.Is(err, domain.ErrTaskNotFound) {
		logger.Warn().Msg("task not found in store")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to load task")
		return
	}

	if err := t.Start(w.now()); err != nil {
		logger.Info().Str("status", string(t.Status)).Msg("task already taken, skipping duplicate delivery")
		return
	}
	if err := w.Store.Update(ctx, *t, domain.StatusPending); err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			logger.Info().Err(err).Msg("task claimed by another delivery")
			return
		}
		logger.Error().Err(err).Msg("failed to mark task processing")
		return
	}

	if execErr := w.run(ctx, *t); execErr != nil {
		logger.Error().Err(execErr).Msg("error processing task")
		_ = t.Fail(w.now(), execErr)
		if err := w.Store.Update(ctx, *t, domain.StatusProcessing); err != nil {
			logger.Error().Err(err).Msg("failed to mark task failed")
			return
		}
		w.failed.Add(1)
		return
	}

	_ = t.Complete(w.now())
	if err := w.Store.Update(ctx, *t, domain.StatusProcessing); err != nil {
		logger.Error().Err(err).Msg("failed to mark task completed")
		return
	}
	if n := w.processed.Add(1); n%progressEvery == 0 {
		log.Ctx(ctx).Info().Int64("processed", n).Msgf("processed %d tasks so far", n)
	}
}

func (w *Worker) run(ctx context.Context, t domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if w.Execute == nil {
		return nil
	}
	return w.Execute(ctx, t)
}
