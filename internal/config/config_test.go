package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, ClockManual, cfg.Chain.ClockMode)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Store.Backend = "sqlite"
	cfg.Chain.ClockMode = ClockBlock
	cfg.Crypto.Scheme = "rot13"
	cfg.Crypto.EncryptedKeyPath = "/keys/escrow.json"
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"log_level", "store: unknown backend", "rpc_url is required",
		"crypto: unknown scheme", "key_password is required", "server: port",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truthpool.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[store]
backend = "postgres"

[postgres]
dsn = "postgres://file"

[redis]
cache_ttl = "30s"

[chain]
clock_mode = "unix"
`), 0o600))

	t.Chdir(dir)
	t.Setenv("TRUTHPOOL_POSTGRES_DSN", "postgres://env")
	t.Setenv("TRUTHPOOL_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("TRUTHPOOL_CHAIN_CLOCK_START", "1000")
	t.Setenv("TRUTHPOOL_SERVER_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL.Duration)
	assert.Equal(t, ClockUnix, cfg.Chain.ClockMode)
	assert.Equal(t, uint64(1000), cfg.Chain.ClockStart)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Crypto.EscrowPrivateKey = "0xdeadbeef"
	cfg.Server.AdminKey = "admin"
	cfg.Notify.DiscordWebhookURL = ""

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Crypto.EscrowPrivateKey)
	assert.Equal(t, redacted, out.Server.AdminKey)
	assert.Empty(t, out.Notify.DiscordWebhookURL)
	assert.Equal(t, "0xdeadbeef", cfg.Crypto.EscrowPrivateKey)

	out.Server.CORSOrigins[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Server.CORSOrigins[0])
}
