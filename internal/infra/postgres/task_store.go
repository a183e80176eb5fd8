package postgres

import (
	"context"
	"errors"
	"fmt"
	"taskbroker/internal/config"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ ports.TaskStore = (*TaskStore)(nil)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TaskStore struct {
	db DB
}

func NewTaskStore(db DB) *TaskStore {
	return &TaskStore{db: db}
}

func Open(ctx context.Context, cfg config.Store) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const taskColumns = `id, payload, status, created_at, processed_at, completed_at, error_message`

func (s *TaskStore) Save(ctx context.Context, t domain.Task) (domain.Task, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO tasks (payload, status, created_at) VALUES ($1, $2, $3) RETURNING id`,
		t.Payload, string(t.Status), t.CreatedAt.UTC(),
	).Scan(&t.ID)
	if err != nil {
		return t, fmt.Errorf("failed to save task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) FindByID(ctx context.Context, id int64) (*domain.Task, error) {
	row := s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}
	return t, nil
}

func (s *TaskStore) Update(ctx context.Context, t domain.Task, from domain.TaskStatus) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks
		SET status = $1, processed_at = $2, completed_at = $3, error_message = $4
		WHERE id = $5 AND status = $6`,
		string(t.Status), utcPtr(t.ProcessedAt), utcPtr(t.CompletedAt), nullable(t.ErrorMessage),
		t.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	cur, err := s.FindByID(ctx, t.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: task %d is %s, expected %s", domain.ErrStaleState, t.ID, cur.Status, from)
}

func (s *TaskStore) CountByStatus(ctx context.Context, st domain.TaskStatus) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE status = $1`, string(st)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s tasks: %w", st, err)
	}
	return n, nil
}

func (s *TaskStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

func (s *TaskStore) Recent(ctx context.Context, limit int) ([]domain.Task, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t         domain.Task
		status    string
		processed *time.Time
		completed *time.Time
		errMsg    *string
	)
	if err := row.Scan(&t.ID, &t.Payload, &status, &t.CreatedAt, &processed, &completed, &errMsg); err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	t.ProcessedAt = processed
	t.CompletedAt = completed
	if errMsg != nil {
		t.ErrorMessage = *errMsg
	}
	return &t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
