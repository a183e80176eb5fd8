package redisq

import (
	"context"
	"fmt"
	"taskbroker/internal/config"
	"taskbroker/pkg/backoff"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Client struct {
	Cfg config.Redis
	Rdb *redis.Client
}

func New(cfg config.Redis) *Client {
	log.Info().Msgf("connecting to redis at %s", cfg.Addr)
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{Cfg: cfg, Rdb: c}
}

func (c *Client) Connect(ctx context.Context) error {
	if err := c.Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Ctx(ctx).Info().Msg("connected to redis")
	return nil
}

// ConnectRetry pings redis until it answers or attempts run out.
func (c *Client) ConnectRetry(ctx context.Context, attempts int, base, max time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = c.Connect(ctx); err == nil {
			return nil
		}
		delay := backoff.ExponentialJitter(base, max, i)
		log.Ctx(ctx).Warn().Err(err).Int("attempt", i).Dur("retry_in", delay).Msg("redis not ready")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (c *Client) Close() error {
	return c.Rdb.Close()
}

func (c *Client) key(parts ...string) string {
	k := c.Cfg.KeyPrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}
