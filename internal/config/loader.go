package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HEDGEWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HEDGEWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.WsURL, "HEDGEWATCH_CHAIN_WS_URL")
	setStr(&cfg.Chain.RpcURL, "HEDGEWATCH_CHAIN_RPC_URL")
	setStr(&cfg.Chain.PoolAddress, "HEDGEWATCH_CHAIN_POOL_ADDRESS")
	setStr(&cfg.Chain.VaultAddress, "HEDGEWATCH_CHAIN_VAULT_ADDRESS")
	setStr(&cfg.Chain.BaseToken, "HEDGEWATCH_CHAIN_BASE_TOKEN")
	setStr(&cfg.Chain.QuoteToken, "HEDGEWATCH_CHAIN_QUOTE_TOKEN")
	setInt(&cfg.Chain.BaseDecimals, "HEDGEWATCH_CHAIN_BASE_DECIMALS")
	setInt(&cfg.Chain.QuoteDecimals, "HEDGEWATCH_CHAIN_QUOTE_DECIMALS")

	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "HEDGEWATCH_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.Market, "HEDGEWATCH_EXCHANGE_MARKET")
	setStr(&cfg.Exchange.AccountAddress, "HEDGEWATCH_EXCHANGE_ACCOUNT_ADDRESS")
	setStr(&cfg.Exchange.PrivateKey, "HEDGEWATCH_EXCHANGE_PRIVATE_KEY")
	setStr(&cfg.Exchange.EncryptedKeyPath, "HEDGEWATCH_EXCHANGE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Exchange.KeyPassword, "HEDGEWATCH_EXCHANGE_KEY_PASSWORD")
	setInt(&cfg.Exchange.SzDecimals, "HEDGEWATCH_EXCHANGE_SZ_DECIMALS")
	setBool(&cfg.Exchange.TradingEnabled, "HEDGEWATCH_EXCHANGE_TRADING_ENABLED")

	// ── Rebalance ──
	setFloat64(&cfg.Rebalance.Band, "HEDGEWATCH_REBALANCE_BAND")
	setInt64(&cfg.Rebalance.CooldownMs, "HEDGEWATCH_REBALANCE_COOLDOWN_MS")
	setInt64(&cfg.Rebalance.MinNotionalMicro, "HEDGEWATCH_REBALANCE_MIN_NOTIONAL_MICRO")
	setInt64(&cfg.Rebalance.MaxNotionalMicro, "HEDGEWATCH_REBALANCE_MAX_NOTIONAL_MICRO")
	setInt(&cfg.Rebalance.MaxBookLevels, "HEDGEWATCH_REBALANCE_MAX_BOOK_LEVELS")

	// ── Events ──
	setInt(&cfg.Events.MaxStored, "HEDGEWATCH_EVENTS_MAX_STORED")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "HEDGEWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HEDGEWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HEDGEWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HEDGEWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HEDGEWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HEDGEWATCH_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "HEDGEWATCH_POSTGRES_ENABLED")
	setBool(&cfg.Postgres.RunMigrations, "HEDGEWATCH_POSTGRES_RUN_MIGRATIONS")
	setStr(&cfg.Postgres.DSN, "HEDGEWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "HEDGEWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "HEDGEWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "HEDGEWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "HEDGEWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "HEDGEWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "HEDGEWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "HEDGEWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "HEDGEWATCH_POSTGRES_POOL_MIN_CONNS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "HEDGEWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "HEDGEWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HEDGEWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "HEDGEWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HEDGEWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HEDGEWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HEDGEWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HEDGEWATCH_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "HEDGEWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "HEDGEWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "HEDGEWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "HEDGEWATCH_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "HEDGEWATCH_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "HEDGEWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "HEDGEWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "HEDGEWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "HEDGEWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "HEDGEWATCH_MODE")
	setStr(&cfg.LogLevel, "HEDGEWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
