package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults and applies TRUTHPOOL_*
// environment overrides. A missing file is not an error when path is
// empty. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets operators inject secrets at deploy time without
// touching the TOML file. Empty variables are ignored.
func applyEnvOverrides(cfg *Config) {
	// ── Store ──
	setStr(&cfg.Store.Backend, "TRUTHPOOL_STORE_BACKEND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.DSN, "TRUTHPOOL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRUTHPOOL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRUTHPOOL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRUTHPOOL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRUTHPOOL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRUTHPOOL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRUTHPOOL_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRUTHPOOL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRUTHPOOL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRUTHPOOL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRUTHPOOL_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRUTHPOOL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRUTHPOOL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRUTHPOOL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRUTHPOOL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRUTHPOOL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRUTHPOOL_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "TRUTHPOOL_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.CacheTTL, "TRUTHPOOL_REDIS_CACHE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRUTHPOOL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRUTHPOOL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRUTHPOOL_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRUTHPOOL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRUTHPOOL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRUTHPOOL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRUTHPOOL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRUTHPOOL_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.KeyPrefix, "TRUTHPOOL_S3_KEY_PREFIX")

	// ── Chain ──
	setStr(&cfg.Chain.ClockMode, "TRUTHPOOL_CHAIN_CLOCK_MODE")
	setUint64(&cfg.Chain.ClockStart, "TRUTHPOOL_CHAIN_CLOCK_START")
	setStr(&cfg.Chain.RPCURL, "TRUTHPOOL_CHAIN_RPC_URL")
	setDuration(&cfg.Chain.BlockTTL, "TRUTHPOOL_CHAIN_BLOCK_TTL")

	// ── Crypto ──
	setStr(&cfg.Crypto.Scheme, "TRUTHPOOL_CRYPTO_SCHEME")
	setStr(&cfg.Crypto.EscrowPrivateKey, "TRUTHPOOL_CRYPTO_ESCROW_PRIVATE_KEY")
	setStr(&cfg.Crypto.EncryptedKeyPath, "TRUTHPOOL_CRYPTO_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Crypto.KeyPassword, "TRUTHPOOL_CRYPTO_KEY_PASSWORD")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRUTHPOOL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRUTHPOOL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRUTHPOOL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRUTHPOOL_SERVER_API_KEY")
	setStr(&cfg.Server.AdminKey, "TRUTHPOOL_SERVER_ADMIN_KEY")
	setInt(&cfg.Server.RateLimit, "TRUTHPOOL_SERVER_RATE_LIMIT")

	// ── Events ──
	setInt(&cfg.Events.StreamMaxLen, "TRUTHPOOL_EVENTS_STREAM_MAX_LEN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRUTHPOOL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRUTHPOOL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRUTHPOOL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRUTHPOOL_NOTIFY_EVENTS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "TRUTHPOOL_METRICS_ENABLED")
	setStr(&cfg.Metrics.Path, "TRUTHPOOL_METRICS_PATH")

	setStr(&cfg.LogLevel, "TRUTHPOOL_LOG_LEVEL")
}

// Typed env-var helpers. Each mutates the target only when the variable is
// set, non-empty and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
