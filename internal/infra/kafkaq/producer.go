package kafkaq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"taskbroker/internal/capture"
	"taskbroker/internal/config"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const BrokerName = "kafka"

var _ ports.Broker = (*StreamBroker)(nil)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StreamBroker is the push broker: each task is published as a TaskEvent
// keyed by its id. Delivery results arrive asynchronously in OnCompletion.
type StreamBroker struct {
	W       MessageWriter
	Topic   string
	Capture ports.MessageCapture
}

func NewStreamBroker(cfg config.Kafka, mc ports.MessageCapture) *StreamBroker {
	b := &StreamBroker{Topic: cfg.Topic, Capture: mc}
	b.W = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion:             b.OnCompletion,
	}
	return b
}

func (b *StreamBroker) Name() string { return BrokerName }

func (b *StreamBroker) Enqueue(ctx context.Context, t domain.Task) error {
	value, err := json.Marshal(domain.NewTaskEvent(t))
	if err != nil {
		return fmt.Errorf("encode task %d: %w", t.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(t.ID, 10)),
		Value: value,
		Time:  time.Now(),
	}
	if err := b.W.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("send task %d to %s: %w", t.ID, b.Topic, err)
	}
	return nil
}

// OnCompletion receives the substrate's delivery result for a batch.
func (b *StreamBroker) OnCompletion(msgs []kafka.Message, err error) {
	for _, m := range msgs {
		if err != nil {
			log.Error().Err(err).Str("key", string(m.Key)).Str("topic", b.Topic).Msg("failed to send task to kafka")
			continue
		}
		log.Debug().Str("key", string(m.Key)).Int("partition", m.Partition).Int64("offset", m.Offset).
			Msgf("task sent to kafka topic %s", b.Topic)

		if b.Capture != nil {
			b.Capture.Capture(context.Background(), ports.DirectionProduced, capture.SourceKafka, b.Topic,
				PositionID(m.Partition, m.Offset), string(m.Value), time.Now())
		}
	}
}

func (b *StreamBroker) Close() error {
	return b.W.Close()
}

// PositionID renders a partition/offset pair for the inspector.
func PositionID(partition int, offset int64) string {
	return fmt.Sprintf("P-%d/O-%d", partition, offset)
}
