package usecase

import (
	"context"
	"errors"
	"sync"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
)

// memList is an in-memory poll broker.
type memList struct {
	mu   sync.Mutex
	refs []any
	err  error
}

func (l *memList) Name() string { return "redis" }

func (l *memList) Enqueue(_ context.Context, t domain.Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.refs = append(l.refs, t.ID)
	return nil
}

func (l *memList) push(ref any) {
	l.mu.Lock()
	l.refs = append(l.refs, ref)
	l.mu.Unlock()
}

func (l *memList) Pop(context.Context) (any, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.refs) == 0 {
		return nil, false, nil
	}
	v := l.refs[0]
	l.refs = l.refs[1:]
	return v, true, nil
}

func (l *memList) Len(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.refs)), nil
}

// memTopic is an in-memory stream broker; deliveries are buffered until
// a consumer drains them.
type memTopic struct {
	ch     chan ports.Delivery
	mu     sync.Mutex
	offset int64
}

func newMemTopic() *memTopic {
	return &memTopic{ch: make(chan ports.Delivery, 4096)}
}

func (m *memTopic) Name() string { return "kafka" }

func (m *memTopic) Enqueue(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	off := m.offset
	m.offset++
	m.mu.Unlock()

	m.ch <- ports.Delivery{Topic: "task-events", Offset: off, Event: domain.NewTaskEvent(t)}
	return nil
}

func (m *memTopic) consume(ctx context.Context, h ports.DeliveryHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-m.ch:
			_ = h(ctx, d)
		}
	}
}

type fixedSelector string

func (s fixedSelector) Get() string { return string(s) }
func (fixedSelector) Set(string) error {
	return errors.New("fixed")
}
