// Package app wires the engine together and runs it: stores, shared state,
// services, the HTTP/WebSocket API and the event relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/truthpool/internal/config"
	"github.com/alanyoungcy/truthpool/internal/server"
	"github.com/alanyoungcy/truthpool/internal/server/handler"
	"github.com/alanyoungcy/truthpool/internal/server/ws"
	"github.com/alanyoungcy/truthpool/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Services holds the engine's service layer.
type Services struct {
	Markets     *service.MarketService
	Submissions *service.SubmissionService
	Access      *service.AccessService
	Accounts    *service.AccountService
}

// NewServices builds the service layer on deps.
func NewServices(deps *Dependencies, logger *slog.Logger) *Services {
	events := service.NewEventPublisher(deps.EventBus, logger.With(slog.String("component", "events")))
	access := service.NewAccessService(deps.PartyStore, events, logger.With(slog.String("component", "access")))
	return &Services{
		Markets: service.NewMarketService(
			deps.MarketStore, deps.Ledger, deps.Clock, deps.MarketCache, deps.LockManager, events,
			logger.With(slog.String("component", "markets")),
		),
		Submissions: service.NewSubmissionService(
			deps.SubmissionStore, access, deps.Cipher, deps.Escrow, events,
			logger.With(slog.String("component", "submissions")),
		),
		Access:   access,
		Accounts: service.NewAccountService(deps.Ledger, logger.With(slog.String("component", "accounts"))),
	}
}

// Run wires all dependencies, starts the API server, the WebSocket hub and
// the event relay, and blocks until ctx is cancelled or one of them fails.
// On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("store", a.cfg.Store.Backend),
		slog.Bool("redis", a.cfg.Redis.Enabled),
		slog.String("clock", a.cfg.Chain.ClockMode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	svcs := NewServices(deps, a.logger)
	g, ctx := errgroup.WithContext(ctx)

	var archiver SettlementArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	relay := NewRelay(deps.EventBus, deps.AuditStore, deps.Notifier, archiver, a.logger)
	g.Go(func() error { return relay.Run(ctx) })

	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.EventBus, deps.Clock, a.logger)
		g.Go(func() error { return hub.Run(ctx) })

		srv := server.NewServer(a.serverConfig(), a.handlers(deps, svcs), hub, deps.RateLimiter,
			a.logger.With(slog.String("component", "server")))
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) serverConfig() server.Config {
	cfg := server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		AdminKey:    a.cfg.Server.AdminKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}
	if a.cfg.Metrics.Enabled {
		cfg.MetricsPath = a.cfg.Metrics.Path
	}
	return cfg
}

func (a *App) handlers(deps *Dependencies, svcs *Services) server.Handlers {
	logger := a.logger.With(slog.String("component", "handler"))
	h := server.Handlers{
		Health:      handler.NewHealthHandler(deps.Clock, deps.HealthChecks, logger),
		Markets:     handler.NewMarketHandler(svcs.Markets, logger),
		Accounts:    handler.NewAccountHandler(svcs.Accounts, logger),
		Submissions: handler.NewSubmissionHandler(svcs.Submissions, logger),
		Parties:     handler.NewPartyHandler(svcs.Access, logger),
		Clock:       handler.NewClockHandler(deps.Clock, logger),
	}
	if deps.Archiver != nil {
		h.Archive = handler.NewArchiveHandler(deps.Archiver, deps.BlobReader, logger)
	}
	return h
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
