package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Upsert inserts or updates an event keyed by slug.
func (s *EventStore) Upsert(ctx context.Context, e domain.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (slug, title, description, neg_risk, start_date, end_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (slug) DO UPDATE SET
			title       = EXCLUDED.title,
			description = EXCLUDED.description,
			neg_risk    = EXCLUDED.neg_risk,
			start_date  = EXCLUDED.start_date,
			end_date    = EXCLUDED.end_date,
			updated_at  = NOW()`,
		e.Slug, e.Title, e.Description, e.NegRisk, e.StartDate, e.EndDate,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert event %s: %w", e.Slug, err)
	}
	return nil
}

// GetBySlug retrieves an event by slug.
func (s *EventStore) GetBySlug(ctx context.Context, slug string) (domain.Event, error) {
	var e domain.Event
	err := s.pool.QueryRow(ctx, `
		SELECT slug, title, description, neg_risk, start_date, end_date, created_at, updated_at
		FROM events WHERE slug = $1`, slug,
	).Scan(&e.Slug, &e.Title, &e.Description, &e.NegRisk, &e.StartDate, &e.EndDate, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", slug, err)
	}
	return e, nil
}
