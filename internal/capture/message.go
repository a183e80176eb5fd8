// Package capture records recently produced and consumed broker messages for
// the inspector endpoints.
package capture

import (
	"taskbroker/internal/ports"
	"time"
	"unicode/utf8"
)

const (
	MaxMessages   = 50
	MaxPayloadLen = 200

	SourceRedis = "REDIS"
	SourceKafka = "KAFKA"
)

func NewMessage(dir ports.Direction, source, target, id, payload string, at time.Time) ports.CapturedMessage {
	return ports.CapturedMessage{
		Source:      source,
		Direction:   dir,
		Timestamp:   at.Local().Format("15:04:05.000"),
		EpochMs:     at.UnixMilli(),
		Target:      target,
		ID:          id,
		Payload:     truncatePayload(payload),
		PayloadSize: utf8.RuneCountInString(payload),
	}
}

func truncatePayload(p string) string {
	if utf8.RuneCountInString(p) <= MaxPayloadLen {
		return p
	}
	return string([]rune(p)[:MaxPayloadLen]) + "..."
}

func StatsOf(msgs []ports.CapturedMessage, capacity int) ports.CaptureStats {
	s := ports.CaptureStats{TotalCaptured: len(msgs), MaxCapacity: capacity}
	for _, m := range msgs {
		switch m.Direction {
		case ports.DirectionProduced:
			s.ProducedCount++
		case ports.DirectionConsumed:
			s.ConsumedCount++
		}
	}
	return s
}
