package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const poolAddr = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func validWatchConfig() Config {
	cfg := Defaults()
	cfg.Chain.WsURL = "wss://rpc.example.org/ws"
	cfg.Chain.PoolAddress = poolAddr
	return cfg
}

func TestValidateAcceptsWatchDefaults(t *testing.T) {
	cfg := validWatchConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Mode = "turbo"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateRejectsBadPoolAddress(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Chain.PoolAddress = "not-an-address"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_address")
}

func TestValidateFullModeRequiresVaultWiring(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Mode = "full"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url is required")
	assert.Contains(t, err.Error(), "vault_address is required")
	assert.Contains(t, err.Error(), "base_token is required")
	assert.Contains(t, err.Error(), "quote_token is required")
}

func TestValidateTradingRequiresKey(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Mode = "full"
	cfg.Chain.RpcURL = "https://rpc.example.org"
	cfg.Chain.VaultAddress = poolAddr
	cfg.Chain.BaseToken = poolAddr
	cfg.Chain.QuoteToken = poolAddr
	cfg.Exchange.TradingEnabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key or encrypted_key_path")
	assert.Contains(t, err.Error(), "account_address")

	cfg.Exchange.PrivateKey = "deadbeef"
	cfg.Exchange.AccountAddress = poolAddr
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvertedNotionalBounds(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Rebalance.MinNotionalMicro = 10_000_000
	cfg.Rebalance.MaxNotionalMicro = 5_000_000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_notional_micro must not be below")
}

func TestValidateReportsAllProblemsAtOnce(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Rebalance.Band = 2.0
	cfg.Events.MaxStored = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "band must be in (0, 1)")
	assert.Contains(t, err.Error(), "max_stored must be >= 1")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestTradingEnabledGatedByMode(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Exchange.TradingEnabled = true
	assert.False(t, cfg.TradingEnabled(), "watch mode never trades")

	cfg.Mode = "full"
	assert.True(t, cfg.TradingEnabled())

	cfg.Exchange.TradingEnabled = false
	assert.False(t, cfg.TradingEnabled())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "watch"

[chain]
ws_url = "wss://rpc.example.org/ws"
pool_address = "`+poolAddr+`"

[rebalance]
band = 0.02

[server]
port = 9090
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://rpc.example.org/ws", cfg.Chain.WsURL)
	assert.Equal(t, 0.02, cfg.Rebalance.Band)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, int64(5_000), cfg.Rebalance.CooldownMs)
	assert.Equal(t, 2000, cfg.Events.MaxStored)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "watch"

[chain]
ws_url = "wss://rpc.example.org/ws"
pool_address = "`+poolAddr+`"
`), 0o600))

	t.Setenv("HEDGEWATCH_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("HEDGEWATCH_REBALANCE_COOLDOWN_MS", "10000")
	t.Setenv("HEDGEWATCH_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, int64(10_000), cfg.Rebalance.CooldownMs)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}
