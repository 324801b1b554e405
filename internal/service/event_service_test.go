package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

type stubEventStore struct {
	event domain.Event
	err   error
}

func (s *stubEventStore) Upsert(context.Context, domain.Event) error { return nil }

func (s *stubEventStore) GetBySlug(context.Context, string) (domain.Event, error) {
	return s.event, s.err
}

func TestGetEvent(t *testing.T) {
	svc := NewEventService(
		&stubEventStore{event: domain.Event{Slug: "election-2028", Title: "Election 2028"}},
		&stubMarketStore{},
		testLogger,
	)

	ev, err := svc.GetEvent(context.Background(), "election-2028")
	require.NoError(t, err)
	assert.Equal(t, "election-2028", ev.Slug)
}

func TestGetEventNotFound(t *testing.T) {
	svc := NewEventService(&stubEventStore{err: domain.ErrNotFound}, &stubMarketStore{}, testLogger)

	_, err := svc.GetEvent(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListEventMarkets(t *testing.T) {
	svc := NewEventService(
		&stubEventStore{event: domain.Event{Slug: "election-2028"}},
		&stubMarketStore{market: domain.Market{ID: "m1", EventSlug: "election-2028"}},
		testLogger,
	)

	markets, err := svc.ListEventMarkets(context.Background(), "election-2028")
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "m1", markets[0].ID)
}

// An unknown event slug surfaces as not-found rather than an empty list.
func TestListEventMarketsUnknownEvent(t *testing.T) {
	svc := NewEventService(&stubEventStore{err: domain.ErrNotFound}, &stubMarketStore{}, testLogger)

	_, err := svc.ListEventMarkets(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
