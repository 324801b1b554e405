package domain

import (
	"context"
	"io"
)

// TradeListOpts provides pagination and block-range filtering for trade
// list queries. Cursor is an opaque row offset returned by a previous page.
type TradeListOpts struct {
	Limit     int
	Cursor    int
	FromBlock *uint64
	ToBlock   *uint64
}

// ListOpts provides pagination for market list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market metadata. Markets are created by catalog
// population and never deleted; only status transitions mutate them.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetBySlug(ctx context.Context, slug string) (Market, error)
	GetByTokenID(ctx context.Context, tokenID string) (Market, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
	ListByEvent(ctx context.Context, eventSlug string) ([]Market, error)
	ListAll(ctx context.Context) ([]Market, error)
	UpdateStatus(ctx context.Context, id string, status MarketStatus) error
	Count(ctx context.Context) (int64, error)
}

// EventStore persists metadata-service events.
type EventStore interface {
	Upsert(ctx context.Context, event Event) error
	GetBySlug(ctx context.Context, slug string) (Event, error)
}

// TradeStore persists matched trades. InsertRange is the pipeline's only
// write path: it inserts every trade of a block range and advances the sync
// cursor in a single transaction. Duplicate (tx_hash, log_index) rows are
// silently skipped; the cursor never moves backwards.
type TradeStore interface {
	InsertRange(ctx context.Context, streamKey string, toBlock uint64, trades []Trade) (int64, error)
	ListByMarket(ctx context.Context, marketID string, opts TradeListOpts) ([]Trade, error)
	ListByToken(ctx context.Context, tokenID string, opts TradeListOpts) ([]Trade, error)
	CountByMarket(ctx context.Context, marketID string) (int64, error)
}

// SyncStateStore reads and initializes per-stream ingestion cursors. Cursor
// advancement happens only inside TradeStore.InsertRange.
type SyncStateStore interface {
	Get(ctx context.Context, streamKey string) (SyncState, error)
	List(ctx context.Context) ([]SyncState, error)
}

// BlobWriter uploads objects to blob storage, used for raw-range archival.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// MarketCache is a read-through cache over MarketStore lookups. It returns
// ErrNotFound on a miss; callers fall back to the store.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetBySlug(ctx context.Context, slug string) (Market, error)
	GetByToken(ctx context.Context, tokenID string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}
