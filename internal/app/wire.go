package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/polyindexer/internal/blob/s3"
	"github.com/alanyoungcy/polyindexer/internal/cache/redis"
	"github.com/alanyoungcy/polyindexer/internal/catalog"
	"github.com/alanyoungcy/polyindexer/internal/config"
	"github.com/alanyoungcy/polyindexer/internal/ctf"
	"github.com/alanyoungcy/polyindexer/internal/domain"
	"github.com/alanyoungcy/polyindexer/internal/pipeline"
	"github.com/alanyoungcy/polyindexer/internal/platform/chain"
	"github.com/alanyoungcy/polyindexer/internal/platform/gamma"
	"github.com/alanyoungcy/polyindexer/internal/service"
	"github.com/alanyoungcy/polyindexer/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore domain.MarketStore
	EventStore  domain.EventStore
	TradeStore  domain.TradeStore
	SyncStore   domain.SyncStateStore

	// Caches (nil when Redis is disabled)
	MarketCache    domain.MarketCache
	TimestampCache pipeline.TimestampCache

	// Chain access (nil outside index/full modes)
	Chain *chain.Client

	// Catalog and pipeline
	Catalog   *catalog.Catalog
	Decoder   *ctf.Decoder
	Indexer   *pipeline.Indexer
	Discovery *pipeline.Discovery

	// Read services
	MarketService *service.MarketService
	EventService  *service.EventService
	TradeService  *service.TradeService
}

// needsChain returns true for modes that ingest from the chain RPC.
func needsChain(mode string) bool {
	return mode == "index" || mode == "full"
}

// needsGamma returns true for modes that run market discovery.
func needsGamma(mode string) bool {
	return mode == "discover" || mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (every mode persists or reads) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.EventStore = postgres.NewEventStore(pool)
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.SyncStore = postgres.NewSyncStateStore(pool)

	// --- Redis (optional) ---
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.TimestampCache = redis.NewTimestampCache(redisClient)
	}

	// --- S3 blob archival (optional) ---
	var archiver *pipeline.Archiver
	if cfg.S3.ArchiveEnabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		archiver = pipeline.NewArchiver(s3blob.NewWriter(s3Client), logger)
	}

	// --- Catalog, populated from persisted markets on startup ---
	deps.Catalog = catalog.New()
	markets, err := deps.MarketStore.ListAll(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load catalog: %w", err)
	}
	deps.Catalog.Swap(catalog.NewSnapshot(markets))

	deps.Decoder = ctf.NewDecoder(int32(cfg.Chain.CollateralDecimals), int32(cfg.Chain.TokenDecimals))

	// --- Chain client and indexer ---
	if needsChain(cfg.Mode) {
		exchanges := make([]common.Address, 0, len(cfg.Chain.Exchanges))
		for _, addr := range cfg.Chain.Exchanges {
			if !common.IsHexAddress(addr) {
				cleanup()
				return nil, nil, fmt.Errorf("wire: invalid exchange address %q", addr)
			}
			exchanges = append(exchanges, common.HexToAddress(addr))
		}

		chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL, exchanges)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain rpc: %w", err)
		}
		closers = append(closers, chainClient.Close)
		deps.Chain = chainClient

		deps.Indexer = pipeline.NewIndexer(
			pipeline.Config{
				StreamKey:   cfg.Indexer.StreamKey,
				BatchSize:   cfg.Indexer.BatchSize,
				Concurrency: cfg.Indexer.Concurrency,
				Retry: pipeline.RetryPolicy{
					MaxAttempts: cfg.Indexer.RetryMaxAttempts,
					BaseDelay:   cfg.Indexer.RetryBaseDelay.Duration,
					MaxDelay:    cfg.Indexer.RetryMaxDelay.Duration,
				},
			},
			chainClient,
			deps.Decoder,
			deps.Catalog,
			deps.TradeStore,
			deps.SyncStore,
			deps.TimestampCache,
			archiver,
			logger,
		)
	}

	// --- Discovery ---
	if needsGamma(cfg.Mode) {
		if !common.IsHexAddress(cfg.Chain.CollateralToken) {
			cleanup()
			return nil, nil, fmt.Errorf("wire: invalid collateral token address %q", cfg.Chain.CollateralToken)
		}
		deps.Discovery = pipeline.NewDiscovery(
			gamma.NewClient(cfg.Gamma.BaseURL),
			deps.MarketStore,
			deps.EventStore,
			deps.Catalog,
			common.HexToAddress(cfg.Chain.CollateralToken),
			logger,
		)
	}

	// --- Read services ---
	deps.MarketService = service.NewMarketService(deps.MarketStore, deps.MarketCache, logger)
	deps.EventService = service.NewEventService(deps.EventStore, deps.MarketStore, logger)
	deps.TradeService = service.NewTradeService(deps.TradeStore, deps.SyncStore, logger)

	return deps, cleanup, nil
}
