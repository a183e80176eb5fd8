package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycle(t *testing.T) {
	now := time.Now()
	task := NewTask("X", now)
	assert.Equal(t, StatusPending, task.Status)
	assert.Nil(t, task.ProcessedAt)

	require.NoError(t, task.Start(now.Add(time.Millisecond)))
	assert.Equal(t, StatusProcessing, task.Status)

	require.NoError(t, task.Complete(now.Add(2*time.Millisecond)))
	assert.Equal(t, StatusCompleted, task.Status)
	assert.False(t, task.CompletedAt.Before(*task.ProcessedAt))
	assert.False(t, task.ProcessedAt.Before(task.CreatedAt))
}

func TestTaskTerminalStatesAreFinal(t *testing.T) {
	now := time.Now()
	for _, finish := range []func(*Task) error{
		func(tk *Task) error { return tk.Complete(now) },
		func(tk *Task) error { return tk.Fail(now, errors.New("boom")) },
	} {
		task := NewTask("X", now)
		require.NoError(t, task.Start(now))
		require.NoError(t, finish(&task))

		assert.ErrorIs(t, task.Start(now), ErrInvalidTransition)
		assert.ErrorIs(t, task.Complete(now), ErrInvalidTransition)
		assert.ErrorIs(t, task.Fail(now, errors.New("again")), ErrInvalidTransition)
		assert.True(t, task.Status.Terminal())
	}
}

func TestTaskCannotSkipProcessing(t *testing.T) {
	task := NewTask("X", time.Now())
	assert.ErrorIs(t, task.Complete(time.Now()), ErrInvalidTransition)
	assert.Equal(t, StatusPending, task.Status)
}

func TestTaskFailTruncatesMessage(t *testing.T) {
	now := time.Now()
	task := NewTask("Y", now)
	require.NoError(t, task.Start(now))
	require.NoError(t, task.Fail(now, errors.New(strings.Repeat("e", 5000))))

	assert.Equal(t, StatusFailed, task.Status)
	assert.Len(t, task.ErrorMessage, MaxErrorLen)
	assert.NotNil(t, task.CompletedAt)
}

func TestTaskCompletionClampedToProcessedAt(t *testing.T) {
	now := time.Now()
	task := NewTask("X", now)
	require.NoError(t, task.Start(now))
	require.NoError(t, task.Complete(now.Add(-time.Second)))
	assert.Equal(t, *task.ProcessedAt, *task.CompletedAt)
}

func TestParseTaskRef(t *testing.T) {
	valid := []any{int64(7), 7, int32(7), uint64(7), "7", " 7 ", []byte("7"), float64(7), json.Number("7")}
	for _, v := range valid {
		id, err := ParseTaskRef(v)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, int64(7), id)
	}

	invalid := []any{"abc", "", 7.5, nil, struct{}{}, int64(0), "-3", uint64(1 << 63)}
	for _, v := range invalid {
		_, err := ParseTaskRef(v)
		assert.ErrorIs(t, err, ErrInvalidTaskRef, "%#v", v)
	}
}

func TestNewTaskEvent(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	task := Task{ID: 42, Payload: "p", CreatedAt: created}

	ev := NewTaskEvent(task)
	assert.Equal(t, int64(42), ev.TaskID)
	assert.Equal(t, "p", ev.Payload)
	assert.Equal(t, "2024-01-02T03:04:05Z", ev.CreatedAt)
}
