package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const insertTradeQuery = `
	INSERT INTO trades (
		market_id, tx_hash, log_index, block_number, exchange, order_hash,
		maker, taker, side, outcome, price, size, fee, token_id, block_timestamp
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11, $12, $13, $14, $15
	)
	ON CONFLICT (tx_hash, log_index) DO NOTHING`

// InsertRange atomically persists a batch of trades and advances the stream
// cursor to toBlock. Duplicate (tx_hash, log_index) rows are skipped without
// error, so re-running a range is safe. The cursor is advanced with GREATEST
// so a stale writer can never move it backwards. An empty trade slice still
// advances the cursor: a range with no fills is a processed range.
//
// Returns the number of rows actually inserted.
func (s *TradeStore) InsertRange(ctx context.Context, streamKey string, toBlock uint64, trades []domain.Trade) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin insert range: %w", err)
	}
	defer tx.Rollback(ctx)

	var inserted int64
	if len(trades) > 0 {
		batch := &pgx.Batch{}
		for _, t := range trades {
			batch.Queue(insertTradeQuery,
				t.MarketID, t.TxHash, t.LogIndex, t.BlockNumber, t.Exchange, t.OrderHash,
				t.Maker, t.Taker, string(t.Side), string(t.Outcome),
				t.Price.String(), t.Size.String(), t.Fee.String(),
				t.TokenID, t.BlockTimestamp,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range trades {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return 0, fmt.Errorf("postgres: insert trade %d in range: %w", i, err)
			}
			inserted += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("postgres: close trade batch: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sync_state (stream_key, last_processed_block, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (stream_key) DO UPDATE SET
			last_processed_block = GREATEST(sync_state.last_processed_block, EXCLUDED.last_processed_block),
			updated_at           = NOW()`,
		streamKey, toBlock,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: advance cursor %s: %w", streamKey, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit insert range: %w", err)
	}
	return inserted, nil
}

const tradeCols = `id, market_id, tx_hash, log_index, block_number, exchange, order_hash,
	maker, taker, side, outcome, price::TEXT, size::TEXT, fee::TEXT, token_id, block_timestamp`

func scanTrade(rows pgx.Rows) (domain.Trade, error) {
	var t domain.Trade
	var side, outcome, price, size, fee string
	err := rows.Scan(
		&t.ID, &t.MarketID, &t.TxHash, &t.LogIndex, &t.BlockNumber, &t.Exchange, &t.OrderHash,
		&t.Maker, &t.Taker, &side, &outcome, &price, &size, &fee, &t.TokenID, &t.BlockTimestamp,
	)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Side = domain.Side(side)
	t.Outcome = domain.Outcome(outcome)
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Trade{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	if t.Size, err = decimal.NewFromString(size); err != nil {
		return domain.Trade{}, fmt.Errorf("parse size %q: %w", size, err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return domain.Trade{}, fmt.Errorf("parse fee %q: %w", fee, err)
	}
	return t, nil
}

// ListByMarket returns trades for a market, newest block first.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.TradeListOpts) ([]domain.Trade, error) {
	return s.list(ctx, "market_id = $1", marketID, opts)
}

// ListByToken returns trades for an outcome token, newest block first.
func (s *TradeStore) ListByToken(ctx context.Context, tokenID string, opts domain.TradeListOpts) ([]domain.Trade, error) {
	return s.list(ctx, "LOWER(token_id) = LOWER($1)", tokenID, opts)
}

func (s *TradeStore) list(ctx context.Context, where, key string, opts domain.TradeListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE ` + where
	args := []any{key}
	argIdx := 2

	if opts.FromBlock != nil {
		query += fmt.Sprintf(" AND block_number >= $%d", argIdx)
		args = append(args, *opts.FromBlock)
		argIdx++
	}
	if opts.ToBlock != nil {
		query += fmt.Sprintf(" AND block_number <= $%d", argIdx)
		args = append(args, *opts.ToBlock)
		argIdx++
	}

	query += " ORDER BY block_number DESC, log_index DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)
	argIdx++

	if opts.Cursor > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Cursor)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trade rows: %w", err)
	}
	return trades, nil
}

// CountByMarket returns the number of trades recorded for a market.
func (s *TradeStore) CountByMarket(ctx context.Context, marketID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM trades WHERE market_id = $1", marketID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count trades for %s: %w", marketID, err)
	}
	return count, nil
}
