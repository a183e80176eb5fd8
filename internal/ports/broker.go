package ports

import (
	"context"
	"taskbroker/internal/domain"
)

// Broker hands a persisted task to a transport.
type Broker interface {
	Enqueue(ctx context.Context, t domain.Task) error
	Name() string
}

// BrokerSelector holds the name of the broker used for new submissions.
type BrokerSelector interface {
	Get() string
	Set(name string) error
}

// ListSource is the pull side of the poll broker.
type ListSource interface {
	// Pop removes the head reference; ok is false when the list is empty.
	Pop(ctx context.Context) (ref any, ok bool, err error)
	Len(ctx context.Context) (int64, error)
}

// Delivery is one event pushed by the stream broker.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Event     domain.TaskEvent
}

type DeliveryHandler func(ctx context.Context, d Delivery) error
