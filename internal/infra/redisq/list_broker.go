package redisq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"taskbroker/internal/capture"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const BrokerName = "redis"

var (
	_ ports.Broker     = (*ListBroker)(nil)
	_ ports.ListSource = (*ListBroker)(nil)
)

// ListBroker is the poll broker: ids are pushed to the tail of a redis list
// and popped from its head.
type ListBroker struct {
	C       *Client
	Capture ports.MessageCapture
}

func NewListBroker(c *Client, mc ports.MessageCapture) *ListBroker {
	return &ListBroker{C: c, Capture: mc}
}

func (b *ListBroker) Name() string { return BrokerName }

func (b *ListBroker) Queue() string { return b.C.Cfg.QueueName }

func (b *ListBroker) Enqueue(ctx context.Context, t domain.Task) error {
	id := strconv.FormatInt(t.ID, 10)
	if err := b.C.Rdb.RPush(ctx, b.Queue(), id).Err(); err != nil {
		return fmt.Errorf("push task %d to %s: %w", t.ID, b.Queue(), err)
	}
	log.Ctx(ctx).Debug().Int64("task_id", t.ID).Str("queue", b.Queue()).Msg("task pushed to redis queue")

	if b.Capture != nil {
		b.Capture.Capture(ctx, ports.DirectionProduced, capture.SourceRedis, b.Queue(), id, "Task ID: "+id, time.Now())
	}
	return nil
}

func (b *ListBroker) Pop(ctx context.Context) (any, bool, error) {
	v, err := b.C.Rdb.LPop(ctx, b.Queue()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func (b *ListBroker) Len(ctx context.Context) (int64, error) {
	return b.C.Rdb.LLen(ctx, b.Queue()).Result()
}
