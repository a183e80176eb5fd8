package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TaskEvent is the envelope published on the stream broker.
type TaskEvent struct {
	TaskID    int64  `json:"taskId"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"createdAt"`
}

func NewTaskEvent(t Task) TaskEvent {
	return TaskEvent{
		TaskID:    t.ID,
		Payload:   t.Payload,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (e TaskEvent) String() string {
	return fmt.Sprintf("TaskEvent{id=%d, payload=%q}", e.TaskID, e.Payload)
}

// ParseTaskRef normalizes a task reference read from a broker into an id.
// Integers of any width, decimal text and integral floats are accepted;
// anything else yields ErrInvalidTaskRef.
func ParseTaskRef(v any) (int64, error) {
	var id int64
	switch x := v.(type) {
	case int64:
		id = x
	case int:
		id = int64(x)
	case int32:
		id = int64(x)
	case int16:
		id = int64(x)
	case int8:
		id = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrInvalidTaskRef, x)
		}
		id = int64(x)
	case uint32:
		id = int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrInvalidTaskRef, x)
		}
		id = int64(x)
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidTaskRef, x)
		}
		id = int64(x)
	case json.Number:
		return ParseTaskRef(string(x))
	case []byte:
		return ParseTaskRef(string(x))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTaskRef, x)
		}
		id = n
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrInvalidTaskRef)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidTaskRef, v)
	}

	if id <= 0 {
		return 0, fmt.Errorf("%w: non-positive id %d", ErrInvalidTaskRef, id)
	}
	return id, nil
}
