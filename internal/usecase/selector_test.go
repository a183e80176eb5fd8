package usecase

import (
	"sync"
	"taskbroker/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerSelector(t *testing.T) {
	s, err := NewBrokerSelector("redis", "redis", "kafka")
	require.NoError(t, err)
	assert.Equal(t, "redis", s.Get())

	require.NoError(t, s.Set("KAFKA"))
	assert.Equal(t, "kafka", s.Get())

	err = s.Set("bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidBrokerType)
	assert.Equal(t, "kafka", s.Get())

	assert.Equal(t, []string{"redis", "kafka"}, s.Known())
}

func TestBrokerSelectorRejectsUnknownInitial(t *testing.T) {
	_, err := NewBrokerSelector("rabbit", "redis", "kafka")
	assert.ErrorIs(t, err, domain.ErrInvalidBrokerType)
}

func TestBrokerSelectorConcurrentAccess(t *testing.T) {
	s, err := NewBrokerSelector("redis", "redis", "kafka")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := "redis"
			if i%2 == 0 {
				name = "Kafka"
			}
			_ = s.Set(name)
		}(i)
		go func() {
			defer wg.Done()
			got := s.Get()
			assert.Contains(t, []string{"redis", "kafka"}, got)
		}()
	}
	wg.Wait()
}
