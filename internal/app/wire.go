package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/truthpool/internal/blob/s3"
	"github.com/alanyoungcy/truthpool/internal/cache/redis"
	"github.com/alanyoungcy/truthpool/internal/clock"
	"github.com/alanyoungcy/truthpool/internal/config"
	"github.com/alanyoungcy/truthpool/internal/crypto"
	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/ledger"
	"github.com/alanyoungcy/truthpool/internal/notify"
	"github.com/alanyoungcy/truthpool/internal/server/handler"
	"github.com/alanyoungcy/truthpool/internal/store/memory"
	"github.com/alanyoungcy/truthpool/internal/store/postgres"
)

// Dependencies bundles the concrete adapters the engine runs on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore     domain.MarketStore
	SubmissionStore domain.SubmissionStore
	PartyStore      domain.PartyStore
	AuditStore      domain.AuditStore

	// Shared state
	Ledger      domain.Ledger
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	EventBus    domain.EventBus

	// Chain and crypto
	Clock  domain.Clock
	Cipher domain.Cipher
	Escrow *crypto.EscrowKey

	// Blob storage, nil unless S3 is enabled
	BlobReader domain.BlobReader
	Archiver   *s3blob.Archiver

	Notifier *notify.Notifier

	// HealthChecks probe each networked backend.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs every adapter from cfg and returns them together with a
// cleanup function that releases connections in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// --- Stores ---
	switch cfg.Store.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.SubmissionStore = postgres.NewSubmissionStore(pool)
		deps.PartyStore = postgres.NewPartyStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	default:
		deps.MarketStore = memory.NewMarketStore()
		deps.SubmissionStore = memory.NewSubmissionStore()
		deps.PartyStore = memory.NewPartyStore()
		deps.AuditStore = memory.NewAuditStore()
	}

	// --- Redis, or in-process equivalents ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		prefix := cfg.Redis.KeyPrefix
		deps.Ledger = redis.NewLedger(redisClient, prefix)
		deps.MarketCache = redis.NewMarketCache(redisClient, prefix, cfg.Redis.CacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, prefix)
		deps.LockManager = redis.NewLockManager(redisClient, prefix)
		deps.EventBus = redis.NewEventBus(redisClient, prefix)
		deps.HealthChecks["redis"] = redisClient.Ping
	} else {
		deps.Ledger = ledger.NewMemory()
		deps.RateLimiter = memory.NewRateLimiter()
		deps.LockManager = memory.NewLockManager()
		deps.EventBus = memory.NewEventBus(cfg.Events.StreamMaxLen)
	}

	// --- Clock ---
	switch cfg.Chain.ClockMode {
	case config.ClockUnix:
		deps.Clock = clock.Unix{}
	case config.ClockBlock:
		chain, closeChain, err := clock.DialChain(ctx, cfg.Chain.RPCURL, cfg.Chain.BlockTTL.Duration)
		if err != nil {
			return fail(fmt.Errorf("wire: chain clock: %w", err))
		}
		closers = append(closers, closeChain)
		deps.Clock = chain
		deps.HealthChecks["chain"] = func(ctx context.Context) error {
			_, err := chain.Now(ctx)
			return err
		}
	default:
		deps.Clock = clock.NewManual(cfg.Chain.ClockStart)
	}

	// --- Crypto ---
	cipher, err := crypto.NewCipher(cfg.Crypto.Scheme)
	if err != nil {
		return fail(fmt.Errorf("wire: cipher: %w", err))
	}
	deps.Cipher = cipher

	src := crypto.KeySource{
		RawPrivateKey:    cfg.Crypto.EscrowPrivateKey,
		EncryptedKeyPath: cfg.Crypto.EncryptedKeyPath,
		KeyPassword:      cfg.Crypto.KeyPassword,
	}
	if src.Configured() {
		key, err := crypto.LoadEscrowKey(src)
		if err != nil {
			return fail(fmt.Errorf("wire: escrow key: %w", err))
		}
		deps.Escrow = &key
		logger.InfoContext(ctx, "wire: escrow key loaded", slog.String("address", key.Address.Hex()))
	} else {
		logger.WarnContext(ctx, "wire: no escrow key configured, revealed submissions cannot be decrypted")
	}

	// --- S3 archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			KeyPrefix:      cfg.S3.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}

		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			reader,
			deps.MarketStore,
			deps.SubmissionStore,
			deps.AuditStore,
			cipher.Scheme(),
		)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
