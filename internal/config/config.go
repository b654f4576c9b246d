// Package config defines the engine configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by TRUTHPOOL_* environment variables.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Chain    ChainConfig    `toml:"chain"`
	Crypto   CryptoConfig   `toml:"crypto"`
	Server   ServerConfig   `toml:"server"`
	Events   EventsConfig   `toml:"events"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
	LogLevel string         `toml:"log_level"`
}

// StoreConfig selects where markets, bets and submissions live.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `toml:"backend"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig enables the shared ledger, cache, locks, event bus and rate
// limiter.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config enables archiving of settlements and revealed evidence.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// KeyPrefix namespaces archive objects inside a shared bucket.
	KeyPrefix string `toml:"key_prefix"`
}

// Clock modes.
const (
	ClockManual = "manual"
	ClockUnix   = "unix"
	ClockBlock  = "block"
)

// ChainConfig selects the logical clock resolution times are measured in.
type ChainConfig struct {
	// ClockMode is "manual" (admin-advanced counter), "unix" (wall-clock
	// seconds) or "block" (block height from RPCURL).
	ClockMode  string   `toml:"clock_mode"`
	ClockStart uint64   `toml:"clock_start"`
	RPCURL     string   `toml:"rpc_url"`
	BlockTTL   duration `toml:"block_ttl"`
}

// CryptoConfig holds the submission cipher and the escrow key source.
type CryptoConfig struct {
	// Scheme is "ecies" or "xor".
	Scheme           string `toml:"scheme"`
	EscrowPrivateKey string `toml:"escrow_private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	AdminKey    string   `toml:"admin_key"`
	// RateLimit is requests per minute per client; zero disables limiting.
	RateLimit int `toml:"rate_limit"`
}

// EventsConfig sizes the in-process event stream.
type EventsConfig struct {
	StreamMaxLen int `toml:"stream_max_len"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// duration wraps time.Duration so TOML can decode "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config that runs a single in-memory instance with no
// external services.
func Defaults() Config {
	return Config{
		Store: StoreConfig{Backend: "memory"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "truthpool",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "truthpool:",
			CacheTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "truthpool-archive",
			ForcePathStyle: true,
		},
		Chain: ChainConfig{
			ClockMode: ClockManual,
			BlockTTL:  duration{2 * time.Second},
		},
		Crypto: CryptoConfig{Scheme: "ecies"},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   600,
		},
		Events: EventsConfig{StreamMaxLen: 10_000},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "submission_revealed"},
		},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validClockModes = map[string]bool{
	ClockManual: true,
	ClockUnix:   true,
	ClockBlock:  true,
}

// Validate returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: memory, postgres)", c.Store.Backend))
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if !validClockModes[c.Chain.ClockMode] {
		errs = append(errs, fmt.Sprintf("chain: unknown clock_mode %q (valid: manual, unix, block)", c.Chain.ClockMode))
	}
	if c.Chain.ClockMode == ClockBlock && c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url is required for clock_mode block")
	}

	switch c.Crypto.Scheme {
	case "", "ecies", "xor":
	default:
		errs = append(errs, fmt.Sprintf("crypto: unknown scheme %q (valid: ecies, xor)", c.Crypto.Scheme))
	}
	if c.Crypto.EncryptedKeyPath != "" && c.Crypto.KeyPassword == "" {
		errs = append(errs, "crypto: key_password is required when encrypted_key_path is set")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics: path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
