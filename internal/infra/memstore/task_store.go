// Package memstore is an in-process task store for local runs without a
// database. Nothing survives a restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
)

var _ ports.TaskStore = (*TaskStore)(nil)

type TaskStore struct {
	mu     sync.RWMutex
	seq    int64
	tasks  map[int64]domain.Task
	counts map[domain.TaskStatus]int64
}

func New() *TaskStore {
	return &TaskStore{
		tasks:  make(map[int64]domain.Task),
		counts: make(map[domain.TaskStatus]int64),
	}
}

func (s *TaskStore) Save(_ context.Context, t domain.Task) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t.ID = s.seq
	s.tasks[t.ID] = t
	s.counts[t.Status]++
	return t, nil
}

func (s *TaskStore) FindByID(_ context.Context, id int64) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &t, nil
}

func (s *TaskStore) Update(_ context.Context, t domain.Task, from domain.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[t.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if cur.Status != from {
		return fmt.Errorf("%w: task %d is %s, expected %s", domain.ErrStaleState, t.ID, cur.Status, from)
	}
	s.counts[cur.Status]--
	s.counts[t.Status]++
	s.tasks[t.ID] = t
	return nil
}

func (s *TaskStore) CountByStatus(_ context.Context, st domain.TaskStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[st], nil
}

func (s *TaskStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tasks)), nil
}

func (s *TaskStore) Recent(_ context.Context, limit int) ([]domain.Task, error) {
	s.mu.RLock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
