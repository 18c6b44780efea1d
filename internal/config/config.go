// Package config defines the top-level configuration for hedgewatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by HEDGEWATCH_* environment variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Rebalance RebalanceConfig `toml:"rebalance"`
	Events    EventsConfig    `toml:"events"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ChainConfig holds the JSON-RPC endpoints and the watched contract set.
type ChainConfig struct {
	WsURL         string `toml:"ws_url"`  // streaming endpoint for eth_subscribe
	RpcURL        string `toml:"rpc_url"` // HTTP endpoint for eth_call
	PoolAddress   string `toml:"pool_address"`
	VaultAddress  string `toml:"vault_address"`
	BaseToken     string `toml:"base_token"`
	QuoteToken    string `toml:"quote_token"`
	BaseDecimals  int    `toml:"base_decimals"`
	QuoteDecimals int    `toml:"quote_decimals"`
}

// ExchangeConfig holds the spot exchange endpoint, market, and signing
// credentials. Either private_key or encrypted_key_path must be set when
// trading is enabled.
type ExchangeConfig struct {
	BaseURL          string `toml:"base_url"`
	Market           string `toml:"market"` // e.g. "PURR/USDC"
	AccountAddress   string `toml:"account_address"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	SzDecimals       int    `toml:"sz_decimals"` // fallback when spot metadata is unavailable
	TradingEnabled   bool   `toml:"trading_enabled"`
}

// RebalanceConfig holds the decision engine parameters. Notionals are in the
// quote asset's smallest unit (micro).
type RebalanceConfig struct {
	Band             float64 `toml:"band"`        // tolerated |ratio-1| deviation
	CooldownMs       int64   `toml:"cooldown_ms"` // min gap between execution starts
	MinNotionalMicro int64   `toml:"min_notional_micro"`
	MaxNotionalMicro int64   `toml:"max_notional_micro"`
	MaxBookLevels    int     `toml:"max_book_levels"`
}

// EventsConfig bounds the in-memory swap event history.
type EventsConfig struct {
	MaxStored int `toml:"max_stored"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds optional durable-store connection parameters.
type PostgresConfig struct {
	Enabled       bool `toml:"enabled"`
	RunMigrations bool `toml:"run_migrations"`

	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// S3Config holds the optional event-archive object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`            // empty disables auth
	RateLimit   int      `toml:"rate_limit_per_min"` // per client IP, 0 disables
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			BaseDecimals:  18,
			QuoteDecimals: 6,
		},
		Exchange: ExchangeConfig{
			BaseURL:        "https://api.hyperliquid-testnet.xyz",
			Market:         "PURR/USDC",
			SzDecimals:     6,
			TradingEnabled: false,
		},
		Rebalance: RebalanceConfig{
			Band:             0.015,
			CooldownMs:       5_000,
			MinNotionalMicro: 5_000_000,   // 5 quote units
			MaxNotionalMicro: 500_000_000, // 500 quote units
			MaxBookLevels:    10,
		},
		Events: EventsConfig{
			MaxStored: 2000,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			RunMigrations: true,
			Host:          "localhost",
			Port:          5432,
			Database:      "hedgewatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "hedgewatch-events",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"rebalance_executed", "error"},
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode. "watch" ingests
// and serves events without trading; "full" additionally runs the rebalancer.
var validModes = map[string]bool{
	"watch": true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// TradingEnabled reports whether this process may submit orders.
func (c *Config) TradingEnabled() bool {
	return strings.ToLower(c.Mode) == "full" && c.Exchange.TradingEnabled
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. Configuration errors are the
// only fatal error class: the process refuses to start on any of them.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.WsURL == "" {
		errs = append(errs, "chain: ws_url must not be empty")
	}
	if c.Chain.PoolAddress == "" {
		errs = append(errs, "chain: pool_address must not be empty")
	} else if !common.IsHexAddress(c.Chain.PoolAddress) {
		errs = append(errs, fmt.Sprintf("chain: pool_address %q is not a valid address", c.Chain.PoolAddress))
	}
	if c.Chain.BaseDecimals < 0 || c.Chain.BaseDecimals > 36 {
		errs = append(errs, fmt.Sprintf("chain: base_decimals must be 0-36, got %d", c.Chain.BaseDecimals))
	}
	if c.Chain.QuoteDecimals < 0 || c.Chain.QuoteDecimals > 36 {
		errs = append(errs, fmt.Sprintf("chain: quote_decimals must be 0-36, got %d", c.Chain.QuoteDecimals))
	}

	// Rebalancing needs the vault, the token contracts, and an RPC endpoint.
	if strings.ToLower(c.Mode) == "full" {
		if c.Chain.RpcURL == "" {
			errs = append(errs, "chain: rpc_url is required for mode full")
		}
		if c.Chain.VaultAddress == "" {
			errs = append(errs, "chain: vault_address is required for mode full")
		} else if !common.IsHexAddress(c.Chain.VaultAddress) {
			errs = append(errs, fmt.Sprintf("chain: vault_address %q is not a valid address", c.Chain.VaultAddress))
		}
		if c.Chain.BaseToken == "" {
			errs = append(errs, "chain: base_token is required for mode full")
		} else if !common.IsHexAddress(c.Chain.BaseToken) {
			errs = append(errs, fmt.Sprintf("chain: base_token %q is not a valid address", c.Chain.BaseToken))
		}
		if c.Chain.QuoteToken == "" {
			errs = append(errs, "chain: quote_token is required for mode full")
		} else if !common.IsHexAddress(c.Chain.QuoteToken) {
			errs = append(errs, fmt.Sprintf("chain: quote_token %q is not a valid address", c.Chain.QuoteToken))
		}
	}

	// Exchange
	if c.Exchange.BaseURL == "" {
		errs = append(errs, "exchange: base_url must not be empty")
	}
	if c.Exchange.Market == "" {
		errs = append(errs, "exchange: market must not be empty")
	}
	if c.Exchange.SzDecimals < 0 || c.Exchange.SzDecimals > 18 {
		errs = append(errs, fmt.Sprintf("exchange: sz_decimals must be 0-18, got %d", c.Exchange.SzDecimals))
	}
	if c.TradingEnabled() {
		if c.Exchange.PrivateKey == "" && c.Exchange.EncryptedKeyPath == "" {
			errs = append(errs, "exchange: either private_key or encrypted_key_path must be set when trading is enabled")
		}
		if c.Exchange.EncryptedKeyPath != "" && c.Exchange.KeyPassword == "" {
			errs = append(errs, "exchange: key_password is required when encrypted_key_path is set")
		}
		if c.Exchange.AccountAddress == "" {
			errs = append(errs, "exchange: account_address must be set when trading is enabled")
		}
	}

	// Rebalance
	if c.Rebalance.Band <= 0 || c.Rebalance.Band >= 1 {
		errs = append(errs, fmt.Sprintf("rebalance: band must be in (0, 1), got %g", c.Rebalance.Band))
	}
	if c.Rebalance.CooldownMs < 0 {
		errs = append(errs, "rebalance: cooldown_ms must be >= 0")
	}
	if c.Rebalance.MinNotionalMicro < 0 {
		errs = append(errs, "rebalance: min_notional_micro must be >= 0")
	}
	if c.Rebalance.MaxNotionalMicro <= 0 {
		errs = append(errs, "rebalance: max_notional_micro must be > 0")
	}
	if c.Rebalance.MaxNotionalMicro < c.Rebalance.MinNotionalMicro {
		errs = append(errs, "rebalance: max_notional_micro must not be below min_notional_micro")
	}
	if c.Rebalance.MaxBookLevels < 1 {
		errs = append(errs, "rebalance: max_book_levels must be >= 1")
	}

	// Events
	if c.Events.MaxStored < 1 {
		errs = append(errs, "events: max_stored must be >= 1")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
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
			errs = append(errs, "postgres: pool_min_conns must be 0..pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
