package capture

import (
	"context"
	"sync"
	"taskbroker/internal/ports"
	"time"
)

var _ ports.MessageCapture = (*Ring)(nil)

// Ring keeps the newest messages in process memory.
type Ring struct {
	mu   sync.Mutex
	size int
	msgs []ports.CapturedMessage // newest first
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = MaxMessages
	}
	return &Ring{size: size}
}

func (r *Ring) Capture(_ context.Context, dir ports.Direction, source, target, id, payload string, at time.Time) {
	m := NewMessage(dir, source, target, id, payload, at)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append([]ports.CapturedMessage{m}, r.msgs...)
	if len(r.msgs) > r.size {
		r.msgs = r.msgs[:r.size]
	}
}

func (r *Ring) Recent(context.Context) ([]ports.CapturedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.CapturedMessage, len(r.msgs))
	copy(out, r.msgs)
	return out, nil
}

func (r *Ring) Stats(ctx context.Context) (ports.CaptureStats, error) {
	msgs, _ := r.Recent(ctx)
	return StatsOf(msgs, r.size), nil
}

func (r *Ring) Clear(context.Context) error {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
	return nil
}
