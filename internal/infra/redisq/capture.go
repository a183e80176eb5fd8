package redisq

import (
	"context"
	"encoding/json"
	"taskbroker/internal/capture"
	"taskbroker/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ ports.MessageCapture = (*StreamCapture)(nil)

const captureBuffer = 256

// StreamCapture keeps the inspector feed in a capped redis stream so API and
// worker processes share it. Capture only enqueues; Run does the writes.
type StreamCapture struct {
	C   *Client
	buf chan ports.CapturedMessage
}

func NewStreamCapture(c *Client) *StreamCapture {
	return &StreamCapture{C: c, buf: make(chan ports.CapturedMessage, captureBuffer)}
}

func (s *StreamCapture) stream() string { return s.C.Cfg.CaptureStream }

func (s *StreamCapture) maxLen() int64 {
	if s.C.Cfg.CaptureLen <= 0 {
		return capture.MaxMessages
	}
	return s.C.Cfg.CaptureLen
}

func (s *StreamCapture) Capture(ctx context.Context, dir ports.Direction, source, target, id, payload string, at time.Time) {
	m := capture.NewMessage(dir, source, target, id, payload, at)
	select {
	case s.buf <- m:
	default:
		log.Ctx(ctx).Debug().Str("id", id).Msg("capture buffer full, message dropped")
	}
}

// Run drains the capture buffer until ctx is done.
func (s *StreamCapture) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-s.buf:
			if err := s.write(ctx, m); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("failed to record captured message")
			}
		}
	}
}

func (s *StreamCapture) write(ctx context.Context, m ports.CapturedMessage) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.C.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream(),
		MaxLen: s.maxLen(),
		Values: map[string]interface{}{"msg": b},
	}).Err()
}

func (s *StreamCapture) Recent(ctx context.Context) ([]ports.CapturedMessage, error) {
	res, err := s.C.Rdb.XRevRangeN(ctx, s.stream(), "+", "-", s.maxLen()).Result()
	if err != nil {
		return nil, err
	}

	out := make([]ports.CapturedMessage, 0, len(res))
	for _, x := range res {
		var m ports.CapturedMessage
		switch v := x.Values["msg"].(type) {
		case string:
			err = json.Unmarshal([]byte(v), &m)
		case []byte:
			err = json.Unmarshal(v, &m)
		default:
			continue
		}
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *StreamCapture) Stats(ctx context.Context) (ports.CaptureStats, error) {
	msgs, err := s.Recent(ctx)
	if err != nil {
		return ports.CaptureStats{}, err
	}
	return capture.StatsOf(msgs, int(s.maxLen())), nil
}

func (s *StreamCapture) Clear(ctx context.Context) error {
	return s.C.Rdb.Del(ctx, s.stream()).Err()
}
