package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/truthpool/internal/crypto"
	"github.com/alanyoungcy/truthpool/internal/domain"
)

// AccessService maintains the authorized-party table. A party that was never
// added, or was removed, is unauthorized. Callers are expected to have
// checked governance rights before Add and Remove.
type AccessService struct {
	parties domain.PartyStore
	events  *EventPublisher
	logger  *slog.Logger

	mu sync.Mutex
}

// NewAccessService creates an AccessService.
func NewAccessService(parties domain.PartyStore, events *EventPublisher, logger *slog.Logger) *AccessService {
	return &AccessService{parties: parties, events: events, logger: logger}
}

// AddAuthorizedParty grants access to party. Adding twice is a no-op.
func (s *AccessService) AddAuthorizedParty(ctx context.Context, party string) error {
	return s.set(ctx, party, true)
}

// RemoveAuthorizedParty revokes access. Removing an absent party is a no-op.
func (s *AccessService) RemoveAuthorizedParty(ctx context.Context, party string) error {
	return s.set(ctx, party, false)
}

func (s *AccessService) set(ctx context.Context, party string, authorized bool) error {
	p, err := crypto.NormalizeIdentity(party)
	if err != nil {
		return fmt.Errorf("access_service: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	was, err := s.parties.IsAuthorized(ctx, p)
	if err != nil {
		return fmt.Errorf("access_service: lookup %s: %w", p, err)
	}
	if err := s.parties.Set(ctx, p, authorized); err != nil {
		return fmt.Errorf("access_service: set %s: %w", p, err)
	}
	if was == authorized {
		return nil
	}

	typ := domain.EventPartyAuthorized
	if !authorized {
		typ = domain.EventPartyRevoked
	}
	s.events.Emit(ctx, typ, map[string]any{"party": p})
	s.logger.InfoContext(ctx, "access_service: party updated",
		slog.String("party", p),
		slog.Bool("authorized", authorized),
	)
	return nil
}

// IsPartyAuthorized reports whether party may decrypt and reveal. Malformed
// identifiers are simply unauthorized.
func (s *AccessService) IsPartyAuthorized(ctx context.Context, party string) (bool, error) {
	p, err := crypto.NormalizeIdentity(party)
	if err != nil {
		return false, nil
	}
	ok, err := s.parties.IsAuthorized(ctx, p)
	if err != nil {
		return false, fmt.Errorf("access_service: lookup %s: %w", p, err)
	}
	return ok, nil
}

// ListAuthorizedParties returns every currently authorized party.
func (s *AccessService) ListAuthorizedParties(ctx context.Context) ([]domain.AuthorizedParty, error) {
	ps, err := s.parties.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("access_service: list: %w", err)
	}
	return ps, nil
}

// require returns domain.ErrUnauthorized unless caller is authorized.
func (s *AccessService) require(ctx context.Context, caller string) error {
	ok, err := s.IsPartyAuthorized(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("caller %q: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}
