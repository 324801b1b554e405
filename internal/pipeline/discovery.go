package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polyindexer/internal/catalog"
	"github.com/alanyoungcy/polyindexer/internal/domain"
	"github.com/alanyoungcy/polyindexer/internal/platform/gamma"
)

// MetadataSource is the metadata-service boundary for market discovery.
type MetadataSource interface {
	GetEventBySlug(ctx context.Context, slug string) (gamma.APIEvent, error)
}

// DiscoveryStats reports the result of one discovery pass.
type DiscoveryStats struct {
	Events     int
	Markets    int
	Verified   int
	Unverified int
}

// Discovery populates the market catalog: it fetches event metadata, verifies
// the published token ids against independent derivations, persists the
// markets, and publishes a fresh catalog snapshot.
type Discovery struct {
	source     MetadataSource
	markets    domain.MarketStore
	events     domain.EventStore
	catalog    *catalog.Catalog
	collateral common.Address
	logger     *slog.Logger
}

// NewDiscovery creates a Discovery. collateral is the fixed collateral token
// address used for position derivation.
func NewDiscovery(
	source MetadataSource,
	markets domain.MarketStore,
	events domain.EventStore,
	cat *catalog.Catalog,
	collateral common.Address,
	logger *slog.Logger,
) *Discovery {
	return &Discovery{
		source:     source,
		markets:    markets,
		events:     events,
		catalog:    cat,
		collateral: collateral,
		logger:     logger.With(slog.String("component", "discovery")),
	}
}

// DiscoverEvent ingests one event and all its markets. Markets with token
// ids that do not survive cross-derivation keep the published ids and are
// flagged unverified; discovery never fails over an unverifiable market.
func (d *Discovery) DiscoverEvent(ctx context.Context, slug string) (DiscoveryStats, error) {
	var stats DiscoveryStats

	apiEvent, err := d.source.GetEventBySlug(ctx, slug)
	if err != nil {
		return stats, fmt.Errorf("pipeline: discover event %s: %w", slug, err)
	}

	if err := d.events.Upsert(ctx, apiEvent.ToDomainEvent()); err != nil {
		return stats, fmt.Errorf("pipeline: upsert event %s: %w", slug, err)
	}
	stats.Events = 1

	markets := make([]domain.Market, 0, len(apiEvent.Markets))
	for i := range apiEvent.Markets {
		m := apiEvent.Markets[i].ToDomainMarket(apiEvent.Slug)
		m.CollateralToken = d.collateral.Hex()

		m = catalog.VerifyMarket(m, d.collateral)
		if m.Verified {
			stats.Verified++
		} else {
			stats.Unverified++
			d.logger.Warn("market token derivation unverified",
				slog.String("market", m.Slug),
				slog.String("condition_id", m.ConditionID),
				slog.Bool("question_id_missing", m.QuestionID == ""),
			)
		}
		markets = append(markets, m)
	}
	stats.Markets = len(markets)

	if err := d.markets.UpsertBatch(ctx, markets); err != nil {
		return stats, fmt.Errorf("pipeline: upsert markets for %s: %w", slug, err)
	}

	if err := d.RefreshCatalog(ctx); err != nil {
		return stats, err
	}

	d.logger.Info("event discovered",
		slog.String("event", apiEvent.Slug),
		slog.Int("markets", stats.Markets),
		slog.Int("verified", stats.Verified),
		slog.Int("unverified", stats.Unverified),
	)
	return stats, nil
}

// RefreshCatalog rebuilds the token index from the store and atomically swaps
// it in. In-flight matching keeps using the previous snapshot until the swap.
func (d *Discovery) RefreshCatalog(ctx context.Context) error {
	markets, err := d.markets.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: refresh catalog: %w", err)
	}
	snap := catalog.NewSnapshot(markets)
	d.catalog.Swap(snap)
	d.logger.Info("catalog refreshed", slog.Int("token_ids", snap.Size()))
	return nil
}

// RunLoop re-discovers the configured event slugs on a repeating interval
// until the context is cancelled. Per-event failures are logged and retried
// next tick.
func (d *Discovery) RunLoop(ctx context.Context, slugs []string, interval time.Duration) error {
	run := func() {
		for _, slug := range slugs {
			if _, err := d.DiscoverEvent(ctx, slug); err != nil {
				d.logger.Error("event discovery failed",
					slog.String("event", slug),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("discovery loop stopped")
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}
