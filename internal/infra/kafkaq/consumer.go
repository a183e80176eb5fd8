package kafkaq

import (
	"context"
	"encoding/json"
	"errors"
	"taskbroker/internal/config"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"taskbroker/pkg/backoff"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer delivers events from a consumer group to Handler. Offsets are
// committed once the handler has accepted the event.
type Consumer struct {
	R           MessageReader
	Handler     ports.DeliveryHandler
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func NewReader(cfg config.Kafka) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
}

func (c Consumer) Run(ctx context.Context) error {
	failures := 0
	for {
		m, err := c.R.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			delay := backoff.ExponentialJitter(c.BaseBackoff, c.MaxBackoff, failures)
			log.Ctx(ctx).Warn().Err(err).Dur("retry_in", delay).Msg("kafka fetch failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		var ev domain.TaskEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Ctx(ctx).Error().Err(err).Int("partition", m.Partition).Int64("offset", m.Offset).
				Msg("undecodable task event dropped")
			c.commit(ctx, m)
			continue
		}

		d := ports.Delivery{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       string(m.Key),
			Event:     ev,
		}
		if err := c.Handler(ctx, d); err != nil {
			// not committed: the group redelivers it to whoever owns the partition next
			return err
		}
		c.commit(ctx, m)
	}
}

func (c Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.R.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		log.Ctx(ctx).Warn().Err(err).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("kafka commit failed")
	}
}
