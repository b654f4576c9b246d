package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// CallerHeader carries the identity of the account making the request. The
// signing layer in front of the engine is responsible for its integrity.
const CallerHeader = "X-Caller"

const maxBodyBytes = 1 << 20

// writeJSON marshals v as JSON and writes it with the given status. If
// marshaling fails it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false,"error":500}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeResult writes the operation envelope for (v, err). Requests carrying
// ?compat=legacy get the folded legacy error codes; closedOnMissing is
// forwarded to domain.LegacyCode for the calls that report a missing
// market as closed.
func writeResult[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, v T, err error, closedOnMissing bool) {
	if err == nil {
		writeJSON(w, http.StatusOK, domain.OK(v))
		return
	}

	code := domain.CodeOf(err)
	if code == domain.CodeInternal {
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	status := httpStatus(code)
	if legacy(r) {
		code = domain.LegacyCode(err, closedOnMissing)
	}
	writeJSON(w, status, domain.Fail[T](code))
}

// writeError writes a failed envelope for a request rejected before it
// reached a service. Legacy callers get the folded code; a malformed path id
// folds like a missing record since the legacy contract has no input error.
func writeError(w http.ResponseWriter, r *http.Request, err error, closedOnMissing bool) {
	code := domain.CodeOf(err)
	status := httpStatus(code)
	if legacy(r) {
		if errors.Is(err, errBadPathID) {
			err = domain.ErrNotFound
		}
		code = domain.LegacyCode(err, closedOnMissing)
	}
	writeJSON(w, status, domain.Fail[struct{}](code))
}

func legacy(r *http.Request) bool {
	return r.URL.Query().Get("compat") == "legacy"
}

func httpStatus(code domain.Code) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeAlreadyResolved, domain.CodeAlreadyClaimed, domain.CodeMarketClosed,
		domain.CodeMarketNotResolved, domain.CodeNotRevealed:
		return http.StatusConflict
	case domain.CodeNothingToClaim, domain.CodeInvalidAmount, domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeEscrowUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeBusy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into v. Field errors that already
// carry a domain error keep it; anything else maps to
// domain.ErrInvalidInput. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case domain.CodeOf(err) != domain.CodeInternal:
		return fmt.Errorf("decode body: %w", err)
	default:
		return fmt.Errorf("decode body: %v: %w", err, domain.ErrInvalidInput)
	}
}

// caller returns the X-Caller identity or "".
func caller(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(CallerHeader))
}

// parseListOpts extracts pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

var errBadPathID = errors.New("malformed path id")

// pathID parses the named path parameter as a uint64 ID.
func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, errors.Join(errBadPathID, domain.ErrInvalidInput))
	}
	return id, nil
}

// amountParam accepts a JSON number or a decimal string, so clients can
// send amounts beyond 2^53 without precision loss.
type amountParam uint64

func (a *amountParam) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("amount %s: %w", b, domain.ErrInvalidAmount)
	}
	*a = amountParam(n)
	return nil
}

// sideParam accepts "yes"/"no" or a JSON boolean.
type sideParam domain.Side

func (p *sideParam) UnmarshalJSON(b []byte) error {
	side, err := domain.ParseSide(strings.Trim(string(b), `"`))
	if err != nil {
		return fmt.Errorf("side %s: %w", b, err)
	}
	*p = sideParam(side)
	return nil
}

// list is the page envelope returned by list endpoints.
type list[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total,omitempty"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func page[T any](items []T, total int64, opts domain.ListOpts) list[T] {
	if items == nil {
		items = []T{}
	}
	return list[T]{Items: items, Total: total, Limit: opts.Limit, Offset: opts.Offset}
}
