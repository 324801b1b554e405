package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

const marketTTL = 5 * time.Minute

// MarketCache is a read-through cache for market metadata, keyed by market ID
// with secondary indexes for slug and outcome token lookups.
//
// Key schema (under the shared namespace):
//
//	polyidx:market:{id}            - hash with field "data" containing JSON
//	polyidx:market:slug:{slug}     - string value of the market ID
//	polyidx:market:token:{tokenID} - string value of the market ID
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.rdb}
}

func marketKey(id string) string       { return key("market", id) }
func marketSlugKey(slug string) string { return key("market", "slug", slug) }
func marketTokenKey(tok string) string { return key("market", "token", strings.ToLower(tok)) }

// Set stores a Market with a 5-minute TTL and indexes its slug and both
// outcome token IDs back to the market ID.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}

	key := marketKey(market.ID)

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, marketTTL)

	if market.Slug != "" {
		pipe.Set(ctx, marketSlugKey(market.Slug), market.ID, marketTTL)
	}
	for _, tokenID := range []string{market.YesTokenID, market.NoTokenID} {
		if tokenID == "" {
			continue
		}
		pipe.Set(ctx, marketTokenKey(tokenID), market.ID, marketTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get retrieves a Market by its ID.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return market, nil
}

// GetBySlug looks up a Market through the slug index.
func (mc *MarketCache) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	marketID, err := mc.rdb.Get(ctx, marketSlugKey(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market by slug %s: %w", slug, err)
	}
	return mc.Get(ctx, marketID)
}

// GetByToken looks up a Market by one of its ERC-1155 outcome token IDs.
func (mc *MarketCache) GetByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	marketID, err := mc.rdb.Get(ctx, marketTokenKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market by token %s: %w", tokenID, err)
	}
	return mc.Get(ctx, marketID)
}

// Invalidate removes a Market and its index entries from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	market, err := mc.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(id))

	if err == nil {
		if market.Slug != "" {
			pipe.Del(ctx, marketSlugKey(market.Slug))
		}
		for _, tokenID := range []string{market.YesTokenID, market.NoTokenID} {
			if tokenID == "" {
				continue
			}
			pipe.Del(ctx, marketTokenKey(tokenID))
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
