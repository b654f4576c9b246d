package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// AccessService manages the authorized-party table.
type AccessService interface {
	AddAuthorizedParty(ctx context.Context, party string) error
	RemoveAuthorizedParty(ctx context.Context, party string) error
	IsPartyAuthorized(ctx context.Context, party string) (bool, error)
	ListAuthorizedParties(ctx context.Context) ([]domain.AuthorizedParty, error)
}

// PartyHandler serves the access table endpoints.
type PartyHandler struct {
	access AccessService
	logger *slog.Logger
}

// NewPartyHandler creates a PartyHandler.
func NewPartyHandler(access AccessService, logger *slog.Logger) *PartyHandler {
	return &PartyHandler{access: access, logger: logger}
}

// AddParty authorizes a party.
// POST /api/parties/{party}
func (h *PartyHandler) AddParty(w http.ResponseWriter, r *http.Request) {
	err := h.access.AddAuthorizedParty(r.Context(), r.PathValue("party"))
	writeResult(w, r, h.logger, true, err, false)
}

// RemoveParty revokes a party.
// DELETE /api/parties/{party}
func (h *PartyHandler) RemoveParty(w http.ResponseWriter, r *http.Request) {
	err := h.access.RemoveAuthorizedParty(r.Context(), r.PathValue("party"))
	writeResult(w, r, h.logger, true, err, false)
}

// IsAuthorized reports whether a party is authorized.
// GET /api/parties/{party}
func (h *PartyHandler) IsAuthorized(w http.ResponseWriter, r *http.Request) {
	ok, err := h.access.IsPartyAuthorized(r.Context(), r.PathValue("party"))
	writeResult(w, r, h.logger, ok, err, false)
}

// ListParties returns every authorized party.
// GET /api/parties
func (h *PartyHandler) ListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.access.ListAuthorizedParties(r.Context())
	if parties == nil {
		parties = []domain.AuthorizedParty{}
	}
	writeResult(w, r, h.logger, parties, err, false)
}
