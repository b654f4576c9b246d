package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// MarketService is the slice of the market service the handlers need.
type MarketService interface {
	CreateMarket(ctx context.Context, creator, description string, resolutionTime uint64) (domain.Market, error)
	PlaceBet(ctx context.Context, user string, marketID uint64, side domain.Side, amount uint64) (domain.Market, error)
	ResolveMarket(ctx context.Context, marketID uint64, outcome bool) (domain.Market, error)
	ClaimWinnings(ctx context.Context, user string, marketID uint64) (domain.Claim, error)
	GetMarket(ctx context.Context, id uint64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error)
	GetBet(ctx context.Context, marketID uint64, user string) (domain.Bet, error)
	ListBets(ctx context.Context, marketID uint64) ([]domain.Bet, error)
	Status(ctx context.Context, m domain.Market) (domain.MarketStatus, error)
}

// MarketHandler serves the prediction market endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// marketView adds the derived lifecycle status to a market.
type marketView struct {
	domain.Market
	Status domain.MarketStatus `json:"status"`
}

type createMarketRequest struct {
	Description    string      `json:"description"`
	ResolutionTime amountParam `json:"resolution_time"`
}

// CreateMarket opens a new market and returns its ID.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	m, err := h.markets.CreateMarket(r.Context(), caller(r), req.Description, uint64(req.ResolutionTime))
	writeResult(w, r, h.logger, m.ID, err, false)
}

// ListMarkets returns a page of markets.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	markets, total, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		writeResult(w, r, h.logger, list[marketView]{}, err, false)
		return
	}

	views := make([]marketView, 0, len(markets))
	for _, m := range markets {
		status, err := h.markets.Status(r.Context(), m)
		if err != nil {
			writeResult(w, r, h.logger, list[marketView]{}, err, false)
			return
		}
		views = append(views, marketView{Market: m, Status: status})
	}
	writeResult(w, r, h.logger, page(views, total, opts), nil, false)
}

// GetMarket returns one market with its status.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeResult(w, r, h.logger, marketView{}, err, false)
		return
	}
	status, err := h.markets.Status(r.Context(), m)
	writeResult(w, r, h.logger, marketView{Market: m, Status: status}, err, false)
}

// placeBetRequest keeps Side a pointer so a body without a side is
// rejected rather than booked on the zero side.
type placeBetRequest struct {
	Side   *sideParam  `json:"side"`
	Amount amountParam `json:"amount"`
}

// PlaceBet stakes the caller's funds on one side.
// POST /api/markets/{id}/bets
func (h *MarketHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, true)
		return
	}
	var req placeBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, true)
		return
	}
	if req.Side == nil {
		writeError(w, r, fmt.Errorf("side is required: %w", domain.ErrInvalidInput), true)
		return
	}
	_, err = h.markets.PlaceBet(r.Context(), caller(r), id, domain.Side(*req.Side), uint64(req.Amount))
	writeResult(w, r, h.logger, true, err, true)
}

// ListBets returns the market's bets in first-bet order.
// GET /api/markets/{id}/bets
func (h *MarketHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	bets, err := h.markets.ListBets(r.Context(), id)
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeResult(w, r, h.logger, bets, err, false)
}

// GetBet returns one user's bet.
// GET /api/markets/{id}/bets/{user}
func (h *MarketHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	bet, err := h.markets.GetBet(r.Context(), id, r.PathValue("user"))
	writeResult(w, r, h.logger, bet, err, false)
}

type resolveRequest struct {
	Outcome *bool `json:"outcome"`
}

// ResolveMarket fixes the outcome.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	if req.Outcome == nil {
		writeError(w, r, domain.ErrInvalidInput, false)
		return
	}
	_, err = h.markets.ResolveMarket(r.Context(), id, *req.Outcome)
	writeResult(w, r, h.logger, true, err, false)
}

// ClaimWinnings pays the caller's share and returns the amount.
// POST /api/markets/{id}/claim
func (h *MarketHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, true)
		return
	}
	c, err := h.markets.ClaimWinnings(r.Context(), caller(r), id)
	writeResult(w, r, h.logger, c.Payout, err, true)
}
