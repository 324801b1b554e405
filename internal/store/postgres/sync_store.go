package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// SyncStateStore implements domain.SyncStateStore using PostgreSQL. It is
// read-only: the cursor is advanced inside TradeStore.InsertRange so trades
// and cursor movement share a transaction.
type SyncStateStore struct {
	pool *pgxpool.Pool
}

// NewSyncStateStore creates a new SyncStateStore backed by the given pool.
func NewSyncStateStore(pool *pgxpool.Pool) *SyncStateStore {
	return &SyncStateStore{pool: pool}
}

// Get returns the cursor for a stream, or domain.ErrNotFound if the stream
// has never been ingested.
func (s *SyncStateStore) Get(ctx context.Context, streamKey string) (domain.SyncState, error) {
	var st domain.SyncState
	err := s.pool.QueryRow(ctx, `
		SELECT stream_key, last_processed_block, updated_at
		FROM sync_state WHERE stream_key = $1`, streamKey,
	).Scan(&st.StreamKey, &st.LastProcessedBlock, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SyncState{}, domain.ErrNotFound
		}
		return domain.SyncState{}, fmt.Errorf("postgres: get sync state %s: %w", streamKey, err)
	}
	return st, nil
}

// List returns the cursors of every known stream.
func (s *SyncStateStore) List(ctx context.Context) ([]domain.SyncState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stream_key, last_processed_block, updated_at
		FROM sync_state ORDER BY stream_key`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sync state: %w", err)
	}
	defer rows.Close()

	var states []domain.SyncState
	for rows.Next() {
		var st domain.SyncState
		if err := rows.Scan(&st.StreamKey, &st.LastProcessedBlock, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan sync state: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: sync state rows: %w", err)
	}
	return states, nil
}
