// Package service exposes read-side operations over the persisted catalog and
// trade history, with a cache in front of the hot market lookups.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// MarketService serves market metadata reads. Lookups by ID, slug, and token
// check the cache first and back-fill it on a miss.
type MarketService struct {
	markets domain.MarketStore
	cache   domain.MarketCache
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. The cache may be nil, in which
// case every read goes straight to the store.
func NewMarketService(markets domain.MarketStore, cache domain.MarketCache, logger *slog.Logger) *MarketService {
	return &MarketService{
		markets: markets,
		cache:   cache,
		logger:  logger,
	}
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the persistent store on a cache miss.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}

	s.backfill(ctx, m)
	return m, nil
}

// GetMarketBySlug retrieves a market by its URL slug.
func (s *MarketService) GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.GetBySlug(ctx, slug); err == nil {
			return m, nil
		}
	}

	m, err := s.markets.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by slug %q: %w", slug, err)
	}

	s.backfill(ctx, m)
	return m, nil
}

// GetMarketByToken retrieves a market by one of its ERC-1155 outcome token IDs.
func (s *MarketService) GetMarketByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.GetByToken(ctx, tokenID); err == nil {
			return m, nil
		}
	}

	m, err := s.markets.GetByTokenID(ctx, tokenID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by token %q: %w", tokenID, err)
	}

	s.backfill(ctx, m)
	return m, nil
}

// backfill writes a market to the cache; failures are logged and ignored.
func (s *MarketService) backfill(ctx context.Context, m domain.Market) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListActive returns active markets directly from the persistent store.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the persistent store.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}
