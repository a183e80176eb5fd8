package usecase

import (
	"context"
	"math/rand/v2"
	"taskbroker/internal/domain"
	"time"
)

// SimulatedExecutor stands in for real business logic: it sleeps for a
// random duration in [min, max].
func SimulatedExecutor(min, max time.Duration) Executor {
	return func(ctx context.Context, t domain.Task) error {
		d := min
		if max > min {
			d += rand.N(max - min + 1)
		}
		time.Sleep(d)
		return nil
	}
}
