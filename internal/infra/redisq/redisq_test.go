package redisq

import (
	"context"
	"errors"
	"sync"
	"taskbroker/internal/capture"
	"taskbroker/internal/config"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Redis{
		Addr:          mr.Addr(),
		QueueName:     "task-queue",
		CaptureStream: "inspector:messages",
		CaptureLen:    5,
		KeyPrefix:     "task",
	}
	c := &Client{Cfg: cfg, Rdb: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestConnect(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.ConnectRetry(context.Background(), 2, time.Millisecond, time.Millisecond))
}

func TestListBrokerFIFO(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	ring := capture.NewRing(10)
	b := NewListBroker(c, ring)
	assert.Equal(t, BrokerName, b.Name())

	for _, id := range []int64{3, 1, 2} {
		require.NoError(t, b.Enqueue(ctx, domain.Task{ID: id}))
	}

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, want := range []string{"3", "1", "2"} {
		v, ok, err := b.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}

	v, ok, err := b.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	msgs, _ := ring.Recent(ctx)
	require.Len(t, msgs, 3)
	assert.Equal(t, ports.DirectionProduced, msgs[0].Direction)
	assert.Equal(t, "Task ID: 2", msgs[0].Payload)
}

func TestListBrokerEnqueueError(t *testing.T) {
	c, mr := newTestClient(t)
	b := NewListBroker(c, nil)
	mr.Close()

	err := b.Enqueue(context.Background(), domain.Task{ID: 1})
	assert.Error(t, err)
}

func TestTaskStoreSaveFind(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	s := NewTaskStore(c)

	created := time.Now().UTC().Truncate(time.Microsecond)
	saved, err := s.Save(ctx, domain.NewTask("hello", created))
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)

	second, err := s.Save(ctx, domain.NewTask("world", created.Add(time.Millisecond)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	got, err := s.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Payload)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.ProcessedAt)

	_, err = s.FindByID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	recent, err := s.Recent(ctx, 20)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(2), recent[0].ID)

	total, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestTaskStoreRecentSameMillisecond(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	s := NewTaskStore(c)

	created := time.Now().UTC()
	for i := 0; i < 10; i++ {
		_, err := s.Save(ctx, domain.NewTask("same", created))
		require.NoError(t, err)
	}

	recent, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	ids := make([]int64, 0, len(recent))
	for _, task := range recent {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []int64{10, 9, 8}, ids)
}

func TestTaskStoreUpdateCompareAndSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	s := NewTaskStore(c)

	task, err := s.Save(ctx, domain.NewTask("x", time.Now()))
	require.NoError(t, err)

	require.NoError(t, task.Start(time.Now()))
	require.NoError(t, s.Update(ctx, task, domain.StatusPending))

	// a second writer still believing the task is pending loses
	err = s.Update(ctx, task, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrStaleState)

	require.NoError(t, task.Fail(time.Now(), errors.New("boom")))
	require.NoError(t, s.Update(ctx, task, domain.StatusProcessing))

	got, err := s.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ProcessedAt)

	for st, want := range map[domain.TaskStatus]int64{
		domain.StatusPending:    0,
		domain.StatusProcessing: 0,
		domain.StatusFailed:     1,
	} {
		n, err := s.CountByStatus(ctx, st)
		require.NoError(t, err)
		assert.Equal(t, want, n, st)
	}

	err = s.Update(ctx, domain.Task{ID: 404, Status: domain.StatusProcessing}, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestTaskStoreConcurrentStartHasOneWinner(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	s := NewTaskStore(c)

	task, err := s.Save(ctx, domain.NewTask("x", time.Now()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := task
			_ = tk.Start(time.Now())
			if s.Update(ctx, tk, domain.StatusPending) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStreamCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, _ := newTestClient(t)
	sc := NewStreamCapture(c)
	go func() { _ = sc.Run(ctx) }()

	for i := 0; i < 7; i++ {
		sc.Capture(ctx, ports.DirectionConsumed, capture.SourceKafka, "task-events", "P-0/O-1", `{"taskId":1}`, time.Now())
	}

	assert.Eventually(t, func() bool {
		msgs, err := sc.Recent(ctx)
		return err == nil && len(msgs) == 5
	}, 2*time.Second, 10*time.Millisecond)

	stats, err := sc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.ConsumedCount)
	assert.Equal(t, 5, stats.MaxCapacity)

	require.NoError(t, sc.Clear(ctx))
	msgs, err := sc.Recent(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestServerInfo(t *testing.T) {
	c, mr := newTestClient(t)

	info, err := c.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CONNECTED", info.Status)
	assert.NotEmpty(t, info.ConnectedClients)

	mr.Close()
	info, err = c.ServerInfo(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "ERROR", info.Status)
}

func TestParseInfo(t *testing.T) {
	raw := "# Server\r\nredis_version:7.2.4\r\nos:Linux 6.1 x86_64\r\nuptime_in_days:3\r\n\r\n# Clients\r\nconnected_clients:12\r\n# Memory\r\nused_memory_human:1.05M\r\n"

	got := parseInfo(raw)
	assert.Equal(t, "7.2.4", got["redis_version"])
	assert.Equal(t, "Linux 6.1 x86_64", got["os"])
	assert.Equal(t, "3", got["uptime_in_days"])
	assert.Equal(t, "12", got["connected_clients"])
	assert.Equal(t, "1.05M", got["used_memory_human"])
}
