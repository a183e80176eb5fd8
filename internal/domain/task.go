package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusFailed     TaskStatus = "FAILED"
)

const (
	MaxPayloadLen = 4096
	MaxErrorLen   = 1024
)

// Statuses lists every status in lifecycle order.
var Statuses = []TaskStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

type Task struct {
	ID           int64      `json:"id"`
	Payload      string     `json:"payload"`
	Status       TaskStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

func NewTask(payload string, now time.Time) Task {
	return Task{
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: now,
	}
}

// Start moves a pending task to PROCESSING.
func (t *Task) Start(now time.Time) error {
	if err := t.transition(StatusProcessing); err != nil {
		return err
	}
	t.ProcessedAt = &now
	return nil
}

func (t *Task) Complete(now time.Time) error {
	if err := t.transition(StatusCompleted); err != nil {
		return err
	}
	t.CompletedAt = t.clampCompletion(now)
	return nil
}

// Fail records cause and moves a processing task to FAILED.
func (t *Task) Fail(now time.Time, cause error) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	msg := "unknown error"
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	t.ErrorMessage = Truncate(msg, MaxErrorLen)
	t.CompletedAt = t.clampCompletion(now)
	return nil
}

func (t *Task) transition(next TaskStatus) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("%w: task %d %s -> %s", ErrInvalidTransition, t.ID, t.Status, next)
	}
	t.Status = next
	return nil
}

// clampCompletion keeps completedAt >= processedAt under wall clock jumps.
func (t *Task) clampCompletion(now time.Time) *time.Time {
	if t.ProcessedAt != nil && now.Before(*t.ProcessedAt) {
		now = *t.ProcessedAt
	}
	return &now
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func (t Task) String() string {
	p := t.Payload
	if utf8.RuneCountInString(p) > 50 {
		p = Truncate(p, 50) + "..."
	}
	return fmt.Sprintf("Task{id=%d, status=%s, payload=%q}", t.ID, t.Status, p)
}
