package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// EventService serves event metadata reads and event-to-market navigation.
type EventService struct {
	events  domain.EventStore
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewEventService creates an EventService.
func NewEventService(events domain.EventStore, markets domain.MarketStore, logger *slog.Logger) *EventService {
	return &EventService{
		events:  events,
		markets: markets,
		logger:  logger,
	}
}

// GetEvent retrieves an event by its URL slug.
func (s *EventService) GetEvent(ctx context.Context, slug string) (domain.Event, error) {
	ev, err := s.events.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event_service: get by slug %q: %w", slug, err)
	}
	return ev, nil
}

// ListEventMarkets returns every market grouped under an event. An unknown
// event slug is an error, not an empty list.
func (s *EventService) ListEventMarkets(ctx context.Context, slug string) ([]domain.Market, error) {
	if _, err := s.events.GetBySlug(ctx, slug); err != nil {
		return nil, fmt.Errorf("event_service: get by slug %q: %w", slug, err)
	}

	markets, err := s.markets.ListByEvent(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("event_service: list markets for %q: %w", slug, err)
	}
	return markets, nil
}
