package usecase

import (
	"context"
	"errors"
	"strings"
	"taskbroker/internal/domain"
	"taskbroker/internal/infra/memstore"
	"taskbroker/internal/ports"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProducer(sel ports.BrokerSelector) (Producer, *memstore.TaskStore, *memList, *memTopic) {
	store := memstore.New()
	list := &memList{}
	topic := newMemTopic()
	p := Producer{
		Store:      store,
		Brokers:    map[string]ports.Broker{list.Name(): list, topic.Name(): topic},
		Selector:   sel,
		List:       list,
		ListBroker: list.Name(),
	}
	return p, store, list, topic
}

func TestSubmitReturnsPendingTask(t *testing.T) {
	ctx := context.Background()
	p, store, list, _ := newProducer(fixedSelector("redis"))

	task, err := p.Submit(ctx, "X")
	require.NoError(t, err)
	assert.Positive(t, task.ID)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())

	stored, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)

	n, _ := list.Len(ctx)
	assert.Equal(t, int64(1), n)
}

func TestSubmitRoutesToActiveBroker(t *testing.T) {
	ctx := context.Background()
	sel, err := NewBrokerSelector("kafka", "redis", "kafka")
	require.NoError(t, err)
	p, _, list, topic := newProducer(sel)

	_, err = p.Submit(ctx, "to kafka")
	require.NoError(t, err)
	assert.Len(t, topic.ch, 1)

	require.NoError(t, sel.Set("redis"))
	_, err = p.Submit(ctx, "to redis")
	require.NoError(t, err)
	n, _ := list.Len(ctx)
	assert.Equal(t, int64(1), n)
	assert.Len(t, topic.ch, 1)
}

func TestSubmitEnqueueFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	p, store, list, _ := newProducer(fixedSelector("redis"))
	list.err = errors.New("connection refused")

	task, err := p.Submit(ctx, "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	require.Positive(t, task.ID)

	stored, err := store.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestSubmitUnknownBroker(t *testing.T) {
	p, store, _, _ := newProducer(fixedSelector("rabbit"))

	_, err := p.Submit(context.Background(), "X")
	assert.ErrorIs(t, err, domain.ErrBrokerUnavailable)

	n, _ := store.CountByStatus(context.Background(), domain.StatusPending)
	assert.Equal(t, int64(1), n)
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	p, store, _, _ := newProducer(fixedSelector("redis"))

	for _, payload := range []string{"", "   ", strings.Repeat("x", domain.MaxPayloadLen+1)} {
		_, err := p.Submit(context.Background(), payload)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	}
	n, _ := store.Count(context.Background())
	assert.Zero(t, n)
}

func TestQueueDepthAndStats(t *testing.T) {
	ctx := context.Background()
	sel, err := NewBrokerSelector("redis", "redis", "kafka")
	require.NoError(t, err)
	p, _, _, _ := newProducer(sel)

	for i := 0; i < 3; i++ {
		_, err := p.Submit(ctx, "X")
		require.NoError(t, err)
	}

	depth, err := p.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)

	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{QueueDepth: 3, TotalTasks: 3, PendingTasks: 3}, stats)

	require.NoError(t, sel.Set("kafka"))
	depth, err = p.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, UnsupportedDepth, depth)
}
