package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"taskbroker/internal/capture"
	"taskbroker/internal/config"
	"taskbroker/internal/domain"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	return &config.Config{
		Broker: config.Broker{Type: "redis"},
		Worker: config.Worker{
			PoolSize:     4,
			PollInterval: 5 * time.Millisecond,
			MinWork:      time.Millisecond,
			MaxWork:      2 * time.Millisecond,
			BaseBackoff:  time.Millisecond,
			MaxBackoff:   10 * time.Millisecond,
		},
		Redis: config.Redis{
			Addr:          mr.Addr(),
			QueueName:     "task-queue",
			CaptureStream: "inspector:messages",
			CaptureLen:    50,
			KeyPrefix:     "task",
		},
		Store: config.Store{Driver: config.DriverMemory},
	}
}

func TestRuntimeProcessesRedisSubmissions(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := Build(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()
	assert.IsType(t, &capture.Ring{}, rt.Capture)
	assert.Nil(t, rt.Stream)

	rt.Start(ctx)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := rt.Producer.Submit(ctx, "job")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		done, _ := rt.Store.CountByStatus(ctx, domain.StatusCompleted)
		return done == n
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	rt.Wait()
	assert.Equal(t, int64(n), rt.Worker.ProcessedCount())

	msgs, err := rt.Capture.Recent(context.Background())
	require.NoError(t, err)
	assert.Len(t, msgs, 2*n)
}

func TestRuntimeRejectsUnknownBroker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Broker.Type = "rabbit"

	_, err := Build(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidBrokerType)
}

func TestAPIServerOverRuntime(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.ShutdownTimeout = time.Second

	rt, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()

	srv := NewAPIServer(rt)
	assert.Equal(t, time.Second, srv.ShutdownTimeout)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"payload":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/inspector/redis", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.JSONEq(t, `{"queueName":"task-queue","size":1}`, rec.Body.String())
}

func TestRuntimeSelectorOnlyKnowsRegisteredBrokers(t *testing.T) {
	cfg := testConfig(t)
	require.False(t, cfg.Kafka.Enabled)

	rt, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, []string{"redis"}, rt.Selector.Known())
	assert.ErrorIs(t, rt.Selector.Set("kafka"), domain.ErrInvalidBrokerType)
	assert.Equal(t, "redis", rt.Selector.Get())

	cfg.Broker.Type = "kafka"
	_, err = Build(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidBrokerType)
}

func TestAPIServerAdminRoutesFollowConfig(t *testing.T) {
	cfg := testConfig(t)

	rt, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.Kafka)

	srv := NewAPIServer(rt)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/kafka/cluster", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/redis/info", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CONNECTED"`)
}
