package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// PartyStore implements domain.PartyStore in memory. Revoking a party
// deletes its entry.
type PartyStore struct {
	mu      sync.RWMutex
	parties map[string]time.Time
}

// NewPartyStore creates an empty PartyStore.
func NewPartyStore() *PartyStore {
	return &PartyStore{parties: make(map[string]time.Time)}
}

func (s *PartyStore) Set(_ context.Context, party string, authorized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if authorized {
		s.parties[party] = time.Now().UTC()
	} else {
		delete(s.parties, party)
	}
	return nil
}

func (s *PartyStore) IsAuthorized(_ context.Context, party string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.parties[party]
	return ok, nil
}

func (s *PartyStore) List(_ context.Context) ([]domain.AuthorizedParty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuthorizedParty, 0, len(s.parties))
	for p, at := range s.parties {
		out = append(out, domain.AuthorizedParty{Party: p, Authorized: true, UpdatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Party < out[j].Party })
	return out, nil
}

var _ domain.PartyStore = (*PartyStore)(nil)
