package redisq

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"taskbroker/internal/ports"
)

var _ ports.RedisInspector = (*Client)(nil)

// ServerInfo reads the default INFO sections and keeps the fields the
// admin API shows.
func (c *Client) ServerInfo(ctx context.Context) (ports.RedisServerInfo, error) {
	raw, err := c.Rdb.Info(ctx).Result()
	if err != nil {
		return ports.RedisServerInfo{Status: "ERROR"}, fmt.Errorf("redis info: %w", err)
	}

	fields := parseInfo(raw)
	return ports.RedisServerInfo{
		Version:          fields["redis_version"],
		OS:               fields["os"],
		UptimeDays:       fields["uptime_in_days"],
		ConnectedClients: fields["connected_clients"],
		UsedMemoryHuman:  fields["used_memory_human"],
		Status:           "CONNECTED",
	}, nil
}

func parseInfo(raw string) map[string]string {
	out := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			out[k] = v
		}
	}
	return out
}
