package redisq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ ports.TaskStore = (*TaskStore)(nil)

const casAttempts = 3

// TaskStore keeps one hash per task, a set per status and a creation-ordered
// zset scored by id. Ids come from INCR on a sequence key, so id order is
// creation order even within one millisecond.
type TaskStore struct {
	C *Client
}

func NewTaskStore(c *Client) *TaskStore {
	return &TaskStore{C: c}
}

func (s *TaskStore) taskKey(id int64) string {
	return s.C.key(strconv.FormatInt(id, 10))
}

func (s *TaskStore) statusKey(st domain.TaskStatus) string {
	return s.C.key("status", string(st))
}

func (s *TaskStore) seqKey() string     { return s.C.key("seq") }
func (s *TaskStore) createdKey() string { return s.C.key("created") }

func (s *TaskStore) Save(ctx context.Context, t domain.Task) (domain.Task, error) {
	id, err := s.C.Rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return t, fmt.Errorf("allocate task id: %w", err)
	}
	t.ID = id
	member := strconv.FormatInt(id, 10)

	_, err = s.C.Rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.taskKey(id), encode(t))
		p.SAdd(ctx, s.statusKey(t.Status), member)
		p.ZAdd(ctx, s.createdKey(), redis.Z{Score: float64(id), Member: member})
		return nil
	})
	if err != nil {
		return t, fmt.Errorf("save task %d: %w", id, err)
	}
	return t, nil
}

func (s *TaskStore) FindByID(ctx context.Context, id int64) (*domain.Task, error) {
	h, err := s.C.Rdb.HGetAll(ctx, s.taskKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}
	if len(h) == 0 {
		return nil, domain.ErrTaskNotFound
	}
	return decode(id, h)
}

func (s *TaskStore) Update(ctx context.Context, t domain.Task, from domain.TaskStatus) error {
	key := s.taskKey(t.ID)
	member := strconv.FormatInt(t.ID, 10)

	txf := func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, key, "status").Result()
		if errors.Is(err, redis.Nil) {
			return domain.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		if domain.TaskStatus(cur) != from {
			return fmt.Errorf("%w: task %d is %s, expected %s", domain.ErrStaleState, t.ID, cur, from)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, encode(t))
			if from != t.Status {
				p.SRem(ctx, s.statusKey(from), member)
				p.SAdd(ctx, s.statusKey(t.Status), member)
			}
			return nil
		})
		return err
	}

	for i := 0; i < casAttempts; i++ {
		err := s.C.Rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update task %d: %w", t.ID, err)
		}
		return nil
	}
	return fmt.Errorf("%w: task %d kept changing", domain.ErrStaleState, t.ID)
}

func (s *TaskStore) CountByStatus(ctx context.Context, st domain.TaskStatus) (int64, error) {
	return s.C.Rdb.SCard(ctx, s.statusKey(st)).Result()
}

func (s *TaskStore) Count(ctx context.Context) (int64, error) {
	return s.C.Rdb.ZCard(ctx, s.createdKey()).Result()
}

func (s *TaskStore) Recent(ctx context.Context, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.C.Rdb.ZRevRange(ctx, s.createdKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent tasks: %w", err)
	}

	out := make([]domain.Task, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		t, err := s.FindByID(ctx, id)
		if errors.Is(err, domain.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func encode(t domain.Task) map[string]any {
	return map[string]any{
		"payload":       t.Payload,
		"status":        string(t.Status),
		"created_at":    formatTime(&t.CreatedAt),
		"processed_at":  formatTime(t.ProcessedAt),
		"completed_at":  formatTime(t.CompletedAt),
		"error_message": t.ErrorMessage,
	}
}

func decode(id int64, h map[string]string) (*domain.Task, error) {
	t := &domain.Task{
		ID:           id,
		Payload:      h["payload"],
		Status:       domain.TaskStatus(h["status"]),
		ErrorMessage: h["error_message"],
	}
	created, err := parseTime(h["created_at"])
	if err != nil {
		return nil, fmt.Errorf("task %d created_at: %w", id, err)
	}
	if created != nil {
		t.CreatedAt = *created
	}
	if t.ProcessedAt, err = parseTime(h["processed_at"]); err != nil {
		return nil, fmt.Errorf("task %d processed_at: %w", id, err)
	}
	if t.CompletedAt, err = parseTime(h["completed_at"]); err != nil {
		return nil, fmt.Errorf("task %d completed_at: %w", id, err)
	}
	return t, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
