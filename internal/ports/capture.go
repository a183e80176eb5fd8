package ports

import (
	"context"
	"time"
)

type Direction string

const (
	DirectionProduced Direction = "PRODUCED"
	DirectionConsumed Direction = "CONSUMED"
)

type CapturedMessage struct {
	Source      string    `json:"source"`
	Direction   Direction `json:"direction"`
	Timestamp   string    `json:"timestamp"`
	EpochMs     int64     `json:"epochMs"`
	Target      string    `json:"target"`
	ID          string    `json:"id"`
	Payload     string    `json:"payload"`
	PayloadSize int       `json:"payloadSize"`
}

type CaptureStats struct {
	TotalCaptured int `json:"totalCaptured"`
	MaxCapacity   int `json:"maxCapacity"`
	ProducedCount int `json:"producedCount"`
	ConsumedCount int `json:"consumedCount"`
}

// MessageCapture is an observability side channel. Capture must not block
// and its failures never affect task state.
type MessageCapture interface {
	Capture(ctx context.Context, dir Direction, source, target, id, payload string, at time.Time)
	Recent(ctx context.Context) ([]CapturedMessage, error)
	Stats(ctx context.Context) (CaptureStats, error)
	Clear(ctx context.Context) error
}
