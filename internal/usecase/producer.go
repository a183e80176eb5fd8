package usecase

import (
	"context"
	"fmt"
	"strings"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// UnsupportedDepth is reported as queue depth when the active broker has no list.
const UnsupportedDepth int64 = -1

type Stats struct {
	QueueDepth      int64 `json:"queueDepth"`
	TotalTasks      int64 `json:"totalTasks"`
	PendingTasks    int64 `json:"pendingTasks"`
	ProcessingTasks int64 `json:"processingTasks"`
	CompletedTasks  int64 `json:"completedTasks"`
	FailedTasks     int64 `json:"failedTasks"`
}

type Producer struct {
	Store    ports.TaskStore
	Brokers  map[string]ports.Broker
	Selector ports.BrokerSelector
	// List is the poll broker's list, used for queue depth; ListBroker names it.
	List       ports.ListSource
	ListBroker string
	Now        func() time.Time
}

func (p Producer) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Submit persists a PENDING task and hands it to the active broker. The
// record is written before the broker is called, so an enqueue failure
// leaves a PENDING row and returns the task along with the error.
func (p Producer) Submit(ctx context.Context, payload string) (domain.Task, error) {
	if strings.TrimSpace(payload) == "" {
		return domain.Task{}, fmt.Errorf("%w: empty", domain.ErrInvalidPayload)
	}
	if utf8.RuneCountInString(payload) > domain.MaxPayloadLen {
		return domain.Task{}, fmt.Errorf("%w: longer than %d characters", domain.ErrInvalidPayload, domain.MaxPayloadLen)
	}

	t, err := p.Store.Save(ctx, domain.NewTask(payload, p.now()))
	if err != nil {
		return domain.Task{}, fmt.Errorf("persist task: %w", err)
	}

	name := p.Selector.Get()
	b, ok := p.Brokers[name]
	if !ok || b == nil {
		return t, fmt.Errorf("%w: %q", domain.ErrBrokerUnavailable, name)
	}

	if err := b.Enqueue(ctx, t); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("task_id", t.ID).Str("broker", name).Msg("enqueue failed, task left pending")
		return t, fmt.Errorf("enqueue on %s: %w", name, err)
	}
	return t, nil
}

// QueueDepth is the poll list length, or UnsupportedDepth when another
// broker is active.
func (p Producer) QueueDepth(ctx context.Context) (int64, error) {
	if p.List == nil || p.Selector.Get() != p.ListBroker {
		return UnsupportedDepth, nil
	}
	return p.List.Len(ctx)
}

func (p Producer) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error

	if s.QueueDepth, err = p.QueueDepth(ctx); err != nil {
		return s, fmt.Errorf("queue depth: %w", err)
	}
	if s.TotalTasks, err = p.Store.Count(ctx); err != nil {
		return s, err
	}

	counts := map[domain.TaskStatus]*int64{
		domain.StatusPending:    &s.PendingTasks,
		domain.StatusProcessing: &s.ProcessingTasks,
		domain.StatusCompleted:  &s.CompletedTasks,
		domain.StatusFailed:     &s.FailedTasks,
	}
	for st, dst := range counts {
		if *dst, err = p.Store.CountByStatus(ctx, st); err != nil {
			return s, err
		}
	}
	return s, nil
}
