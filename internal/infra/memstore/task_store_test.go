package memstore

import (
	"context"
	"taskbroker/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	a, err := s.Save(ctx, domain.NewTask("a", now))
	require.NoError(t, err)
	b, err := s.Save(ctx, domain.NewTask("b", now.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	require.NoError(t, a.Start(now))
	require.NoError(t, s.Update(ctx, a, domain.StatusPending))
	assert.ErrorIs(t, s.Update(ctx, a, domain.StatusPending), domain.ErrStaleState)
	assert.ErrorIs(t, s.Update(ctx, domain.Task{ID: 7}, domain.StatusPending), domain.ErrTaskNotFound)

	pending, _ := s.CountByStatus(ctx, domain.StatusPending)
	processing, _ := s.CountByStatus(ctx, domain.StatusProcessing)
	total, _ := s.Count(ctx)
	assert.Equal(t, int64(1), pending)
	assert.Equal(t, int64(1), processing)
	assert.Equal(t, int64(2), total)

	recent, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].Payload)

	_, err = s.FindByID(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}
