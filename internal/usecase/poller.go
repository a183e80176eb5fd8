package usecase

import (
	"context"
	"sync/atomic"
	"taskbroker/internal/ports"
	"time"

	"github.com/rs/zerolog/log"
)

// Poller pops at most one reference from the poll broker per tick and hands
// it to the worker.
type Poller struct {
	Source   ports.ListSource
	Worker   *Worker
	Queue    string
	Interval time.Duration

	running atomic.Bool
}

func NewPoller(src ports.ListSource, w *Worker, queue string, interval time.Duration) *Poller {
	return &Poller{Source: src, Worker: w, Queue: queue, Interval: interval}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one poll. It returns false without doing anything when
// another tick is still in progress.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		return false
	}
	defer p.running.Store(false)

	ref, ok, err := p.Source.Pop(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Ctx(ctx).Warn().Err(err).Str("queue", p.Queue).Msg("failed to pop task reference")
		}
		return true
	}
	if !ok {
		return true
	}

	if err := p.Worker.HandleRef(ctx, p.Queue, ref); err != nil {
		log.Ctx(ctx).Error().Err(err).Interface("ref", ref).Msg("failed to dispatch task, reference lost")
	}
	return true
}
