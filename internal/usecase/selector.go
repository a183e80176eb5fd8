package usecase

import (
	"fmt"
	"strings"
	"sync"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
)

var _ ports.BrokerSelector = (*BrokerSelector)(nil)

// BrokerSelector is the runtime-switchable name of the broker used for new
// submissions. Names are matched case-insensitively and stored lowercase.
type BrokerSelector struct {
	mu      sync.Mutex
	current string
	known   []string
}

func NewBrokerSelector(initial string, known ...string) (*BrokerSelector, error) {
	s := &BrokerSelector{}
	for _, k := range known {
		s.known = append(s.known, strings.ToLower(k))
	}
	if err := s.Set(initial); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BrokerSelector) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *BrokerSelector) Set(name string) error {
	canon := strings.ToLower(strings.TrimSpace(name))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.known {
		if k == canon {
			s.current = canon
			return nil
		}
	}
	return fmt.Errorf("%w: %q", domain.ErrInvalidBrokerType, name)
}

// Known returns the accepted broker names.
func (s *BrokerSelector) Known() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.known...)
}
