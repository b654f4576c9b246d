// Package server exposes the engine over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/server/handler"
	"github.com/alanyoungcy/truthpool/internal/server/middleware"
	"github.com/alanyoungcy/truthpool/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards every route except health and metrics. Empty disables.
	APIKey string
	// AdminKey guards governance routes. Empty leaves them open.
	AdminKey string
	// RateLimit is requests per minute per client. Zero disables.
	RateLimit   int
	MetricsPath string
}

// Handlers aggregates the HTTP handlers. Archive and Hub may be nil.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Accounts    *handler.AccountHandler
	Submissions *handler.SubmissionHandler
	Parties     *handler.PartyHandler
	Clock       *handler.ClockHandler
	Archive     *handler.ArchiveHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in CORS, logging, rate
// limiting and API-key auth, outermost first.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	admin := middleware.AdminOnly(cfg.AdminKey)
	adminFunc := func(f http.HandlerFunc) http.Handler { return admin(f) }

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Markets.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Markets.PlaceBet)
	mux.HandleFunc("GET /api/markets/{id}/bets", handlers.Markets.ListBets)
	mux.HandleFunc("GET /api/markets/{id}/bets/{user}", handlers.Markets.GetBet)
	mux.Handle("POST /api/markets/{id}/resolve", adminFunc(handlers.Markets.ResolveMarket))
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Markets.ClaimWinnings)

	// Ledger pass-through.
	mux.HandleFunc("POST /api/accounts/deposit", handlers.Accounts.Deposit)
	mux.HandleFunc("POST /api/accounts/withdraw", handlers.Accounts.Withdraw)
	mux.HandleFunc("GET /api/accounts/{account}", handlers.Accounts.Balance)

	// Submissions and ciphers.
	mux.HandleFunc("POST /api/submissions", handlers.Submissions.Submit)
	mux.HandleFunc("GET /api/submissions", handlers.Submissions.ListSubmissions)
	mux.HandleFunc("GET /api/submissions/{id}", handlers.Submissions.GetSubmission)
	mux.HandleFunc("POST /api/submissions/{id}/reveal", handlers.Submissions.RevealSubmission)
	mux.HandleFunc("POST /api/submissions/{id}/decrypt", handlers.Submissions.DecryptSubmission)
	mux.HandleFunc("POST /api/crypto/encrypt", handlers.Submissions.Encrypt)
	mux.HandleFunc("POST /api/crypto/decrypt", handlers.Submissions.Decrypt)
	mux.HandleFunc("GET /api/crypto/escrow-key", handlers.Submissions.EscrowKey)

	// Access table.
	mux.HandleFunc("GET /api/parties", handlers.Parties.ListParties)
	mux.HandleFunc("GET /api/parties/{party}", handlers.Parties.IsAuthorized)
	mux.Handle("POST /api/parties/{party}", adminFunc(handlers.Parties.AddParty))
	mux.Handle("DELETE /api/parties/{party}", adminFunc(handlers.Parties.RemoveParty))

	// Logical clock.
	mux.HandleFunc("GET /api/clock", handlers.Clock.Now)
	if handlers.Clock.Manual() {
		mux.Handle("POST /api/clock/advance", adminFunc(handlers.Clock.Advance))
		mux.Handle("POST /api/clock/set", adminFunc(handlers.Clock.Set))
	}

	// Archive.
	if handlers.Archive != nil {
		mux.Handle("POST /api/markets/{id}/archive", adminFunc(handlers.Archive.ArchiveMarket))
		mux.Handle("POST /api/submissions/{id}/archive", adminFunc(handlers.Archive.ArchiveSubmission))
		mux.HandleFunc("GET /api/archive", handlers.Archive.List)
		mux.HandleFunc("GET /api/archive/{path...}", handlers.Archive.Get)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
	if cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", cfg.MetricsPath)(h)
	h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
