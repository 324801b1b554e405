// Package config defines the top-level configuration for the indexer and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYIDX_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Gamma    GammaConfig    `toml:"gamma"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Indexer  IndexerConfig  `toml:"indexer"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the RPC endpoint and on-chain contract parameters.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`

	// Exchanges are the CTF exchange contract addresses whose OrderFilled
	// events are ingested. Polygon mainnet runs two: the original exchange
	// and the neg-risk adapter's exchange.
	Exchanges []string `toml:"exchanges"`

	// CollateralToken is the ERC-20 used as collateral (USDC on Polygon).
	CollateralToken string `toml:"collateral_token"`

	// CollateralDecimals and TokenDecimals control amount normalization when
	// decoding fills. USDC and CTF outcome tokens both use 6 on Polygon.
	CollateralDecimals int `toml:"collateral_decimals"`
	TokenDecimals      int `toml:"token_decimals"`
}

// GammaConfig holds the market metadata API endpoint.
type GammaConfig struct {
	BaseURL string `toml:"base_url"`
}

// CatalogConfig controls market discovery.
type CatalogConfig struct {
	// EventSlugs are the metadata-service event slugs to discover markets
	// from on startup and on every refresh.
	EventSlugs []string `toml:"event_slugs"`

	// RefreshInterval is how often discovery re-fetches event metadata and
	// rebuilds the in-memory catalog snapshot. Zero disables periodic refresh.
	RefreshInterval duration `toml:"refresh_interval"`
}

// IndexerConfig controls the ingestion pipeline.
type IndexerConfig struct {
	StreamKey    string   `toml:"stream_key"`
	BatchSize    uint64   `toml:"batch_size"`
	Concurrency  int      `toml:"concurrency"`
	PollInterval duration `toml:"poll_interval"`

	// FromBlock/ToBlock bound a one-shot backfill in index mode. ToBlock==0
	// means "until the chain head". FromBlock==0 resumes from the cursor.
	FromBlock uint64 `toml:"from_block"`
	ToBlock   uint64 `toml:"to_block"`

	// TxHash, when set, indexes the fills of a single transaction and exits.
	TxHash string `toml:"tx_hash"`

	RetryMaxAttempts int      `toml:"retry_max_attempts"`
	RetryBaseDelay   duration `toml:"retry_base_delay"`
	RetryMaxDelay    duration `toml:"retry_max_delay"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// RedisConfig holds Redis connection parameters. Enabled=false runs the
// indexer without any cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for raw log
// archival. ArchiveEnabled=false skips archival entirely.
type S3Config struct {
	ArchiveEnabled bool   `toml:"archive_enabled"`
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
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL: "https://polygon-rpc.com",
			Exchanges: []string{
				"0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E", // CTF Exchange
				"0xC5d563A36AE78145C45a50134d48A1215220f80a", // Neg Risk CTF Exchange
			},
			CollateralToken:    "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", // USDC
			CollateralDecimals: 6,
			TokenDecimals:      6,
		},
		Gamma: GammaConfig{
			BaseURL: "https://gamma-api.polymarket.com",
		},
		Catalog: CatalogConfig{
			EventSlugs:      []string{},
			RefreshInterval: duration{10 * time.Minute},
		},
		Indexer: IndexerConfig{
			StreamKey:        "polygon-orderfilled",
			BatchSize:        1000,
			Concurrency:      4,
			PollInterval:     duration{15 * time.Second},
			RetryMaxAttempts: 5,
			RetryBaseDelay:   duration{500 * time.Millisecond},
			RetryMaxDelay:    duration{15 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyindexer",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			ArchiveEnabled: false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyindexer-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"discover": true,
	"index":    true,
	"serve":    true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: discover, index, serve, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsChain := c.Mode == "index" || c.Mode == "full"
	if needsChain {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty for mode "+c.Mode)
		}
		if len(c.Chain.Exchanges) == 0 {
			errs = append(errs, "chain: at least one exchange address is required for mode "+c.Mode)
		}
	}
	if c.Chain.CollateralDecimals < 0 || c.Chain.CollateralDecimals > 18 {
		errs = append(errs, fmt.Sprintf("chain: collateral_decimals must be 0-18, got %d", c.Chain.CollateralDecimals))
	}
	if c.Chain.TokenDecimals < 0 || c.Chain.TokenDecimals > 18 {
		errs = append(errs, fmt.Sprintf("chain: token_decimals must be 0-18, got %d", c.Chain.TokenDecimals))
	}

	if (c.Mode == "discover" || c.Mode == "full") && c.Gamma.BaseURL == "" {
		errs = append(errs, "gamma: base_url must not be empty for mode "+c.Mode)
	}

	if c.Indexer.StreamKey == "" {
		errs = append(errs, "indexer: stream_key must not be empty")
	}
	if c.Indexer.BatchSize == 0 {
		errs = append(errs, "indexer: batch_size must be >= 1")
	}
	if c.Indexer.Concurrency < 1 {
		errs = append(errs, "indexer: concurrency must be >= 1")
	}
	if c.Indexer.RetryMaxAttempts < 1 {
		errs = append(errs, "indexer: retry_max_attempts must be >= 1")
	}
	if c.Indexer.ToBlock != 0 && c.Indexer.FromBlock > c.Indexer.ToBlock {
		errs = append(errs, fmt.Sprintf("indexer: from_block %d exceeds to_block %d", c.Indexer.FromBlock, c.Indexer.ToBlock))
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archival is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archival is enabled")
		}
	}

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
