package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarketQuery = `
	INSERT INTO markets (
		id, event_slug, slug, question, condition_id, question_id,
		oracle, collateral_token, yes_token_id, no_token_id,
		neg_risk, status, verified, updated_at
	) VALUES (
		$1, NULLIF($2, ''), $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		event_slug       = EXCLUDED.event_slug,
		slug             = EXCLUDED.slug,
		question         = EXCLUDED.question,
		condition_id     = EXCLUDED.condition_id,
		question_id      = EXCLUDED.question_id,
		oracle           = EXCLUDED.oracle,
		collateral_token = EXCLUDED.collateral_token,
		yes_token_id     = EXCLUDED.yes_token_id,
		no_token_id      = EXCLUDED.no_token_id,
		neg_risk         = EXCLUDED.neg_risk,
		status           = EXCLUDED.status,
		verified         = EXCLUDED.verified,
		updated_at       = NOW()`

// Upsert inserts or updates a single market keyed by its metadata-service id.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	_, err := s.pool.Exec(ctx, upsertMarketQuery,
		m.ID, m.EventSlug, m.Slug, m.Question, m.ConditionID, m.QuestionID,
		m.Oracle, m.CollateralToken, m.YesTokenID, m.NoTokenID,
		m.NegRisk, string(m.Status), m.Verified,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple markets in a single batch.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketQuery,
			m.ID, m.EventSlug, m.Slug, m.Question, m.ConditionID, m.QuestionID,
			m.Oracle, m.CollateralToken, m.YesTokenID, m.NoTokenID,
			m.NegRisk, string(m.Status), m.Verified,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

const marketCols = `id, COALESCE(event_slug, ''), slug, question, condition_id, question_id,
	oracle, collateral_token, yes_token_id, no_token_id,
	neg_risk, status, verified, created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	err := row.Scan(
		&m.ID, &m.EventSlug, &m.Slug, &m.Question, &m.ConditionID, &m.QuestionID,
		&m.Oracle, &m.CollateralToken, &m.YesTokenID, &m.NoTokenID,
		&m.NegRisk, &status, &m.Verified, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetBySlug retrieves a market by its URL slug.
func (s *MarketStore) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE slug = $1`, slug)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by slug %s: %w", slug, err)
	}
	return m, nil
}

// GetByTokenID retrieves a market by either outcome token id.
func (s *MarketStore) GetByTokenID(ctx context.Context, tokenID string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE LOWER(yes_token_id) = LOWER($1) OR LOWER(no_token_id) = LOWER($1)`, tokenID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by token %s: %w", tokenID, err)
	}
	return m, nil
}

// ListActive returns active markets with pagination.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = 'active' ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// ListByEvent returns every market linked to an event.
func (s *MarketStore) ListByEvent(ctx context.Context, eventSlug string) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE event_slug = $1 ORDER BY created_at`, eventSlug)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets for event %s: %w", eventSlug, err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// ListAll returns every market, used to rebuild the catalog snapshot.
func (s *MarketStore) ListAll(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+marketCols+` FROM markets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return markets, nil
}

// UpdateStatus transitions a market's lifecycle status.
func (s *MarketStore) UpdateStatus(ctx context.Context, id string, status domain.MarketStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("postgres: update market status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
