package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// ManualClock is a clock an operator can move forward.
type ManualClock interface {
	domain.Clock
	Set(t uint64)
	Advance(d uint64) uint64
}

// ClockHandler exposes the logical clock. Set and Advance are only routed
// when the engine runs on a manual clock.
type ClockHandler struct {
	clock  domain.Clock
	logger *slog.Logger
}

// NewClockHandler creates a ClockHandler.
func NewClockHandler(clock domain.Clock, logger *slog.Logger) *ClockHandler {
	return &ClockHandler{clock: clock, logger: logger}
}

// Manual reports whether the clock can be moved.
func (h *ClockHandler) Manual() bool {
	_, ok := h.clock.(ManualClock)
	return ok
}

// Now returns the current logical time.
// GET /api/clock
func (h *ClockHandler) Now(w http.ResponseWriter, r *http.Request) {
	now, err := h.clock.Now(r.Context())
	writeResult(w, r, h.logger, now, err, false)
}

type clockRequest struct {
	By  amountParam `json:"by"`
	Now amountParam `json:"now"`
}

// Advance moves a manual clock forward by "by", saturating rather than wrapping.
// POST /api/clock/advance
func (h *ClockHandler) Advance(w http.ResponseWriter, r *http.Request) {
	mc, ok := h.clock.(ManualClock)
	if !ok {
		writeError(w, r, domain.ErrInvalidInput, false)
		return
	}
	var req clockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	now := mc.Advance(uint64(req.By))
	h.logger.InfoContext(r.Context(), "handler: clock advanced", slog.Uint64("now", now))
	writeResult(w, r, h.logger, now, nil, false)
}

// Set moves a manual clock to "now". The clock never goes backwards.
// POST /api/clock/set
func (h *ClockHandler) Set(w http.ResponseWriter, r *http.Request) {
	mc, ok := h.clock.(ManualClock)
	if !ok {
		writeError(w, r, domain.ErrInvalidInput, false)
		return
	}
	var req clockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	mc.Set(uint64(req.Now))
	now, err := mc.Now(r.Context())
	writeResult(w, r, h.logger, now, err, false)
}
