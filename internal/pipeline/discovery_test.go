package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyindexer/internal/catalog"
	"github.com/alanyoungcy/polyindexer/internal/ctf"
	"github.com/alanyoungcy/polyindexer/internal/domain"
	"github.com/alanyoungcy/polyindexer/internal/platform/gamma"
)

var testCollateral = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")

type fakeMeta struct {
	events map[string]gamma.APIEvent
	err    error
}

func (f *fakeMeta) GetEventBySlug(_ context.Context, slug string) (gamma.APIEvent, error) {
	if f.err != nil {
		return gamma.APIEvent{}, f.err
	}
	ev, ok := f.events[slug]
	if !ok {
		return gamma.APIEvent{}, domain.ErrNotFound
	}
	return ev, nil
}

type memMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[string]domain.Market)}
}

func (s *memMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	for _, m := range markets {
		if err := s.Upsert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) GetBySlug(context.Context, string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (s *memMarketStore) GetByTokenID(context.Context, string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (s *memMarketStore) ListActive(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

func (s *memMarketStore) ListByEvent(_ context.Context, eventSlug string) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.EventSlug == eventSlug {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMarketStore) ListAll(context.Context) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out, nil
}

func (s *memMarketStore) UpdateStatus(_ context.Context, id string, status domain.MarketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = status
	s.markets[id] = m
	return nil
}

func (s *memMarketStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.markets)), nil
}

type memEventStore struct {
	mu     sync.Mutex
	events map[string]domain.Event
}

func newMemEventStore() *memEventStore {
	return &memEventStore{events: make(map[string]domain.Event)}
}

func (s *memEventStore) Upsert(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.Slug] = e
	return nil
}

func (s *memEventStore) GetBySlug(_ context.Context, slug string) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[slug]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, nil
}

// apiEventFixture builds an APIEvent the way the metadata service would serve
// it, with token ids carried as decimal strings inside a JSON array.
func apiEventFixture(t *testing.T, slug string, markets ...map[string]any) gamma.APIEvent {
	t.Helper()
	doc := map[string]any{
		"slug":    slug,
		"title":   "Test Event",
		"markets": markets,
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var ev gamma.APIEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestDiscoverEventPopulatesCatalog(t *testing.T) {
	cond := ctf.ConditionID(
		common.HexToAddress("0x6A9D222616C90FcA5754cd1333cFD9b7fb6a4F74"),
		common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000001"),
		ctf.BinaryOutcomeSlots,
	)
	derived := ctf.DeriveBinaryMarket(common.Address{}, nil, cond, testCollateral)

	ev := apiEventFixture(t, "test-event", map[string]any{
		"id":           "m1",
		"slug":         "will-it-happen",
		"question":     "Will it happen?",
		"conditionId":  cond.Hex(),
		"clobTokenIds": fmt.Sprintf(`["%s","%s"]`, derived.Tokens.Yes.Hex(), derived.Tokens.No.Hex()),
		"active":       true,
	})

	markets := newMemMarketStore()
	events := newMemEventStore()
	cat := catalog.New()
	d := NewDiscovery(
		&fakeMeta{events: map[string]gamma.APIEvent{"test-event": ev}},
		markets, events, cat, testCollateral,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	stats, err := d.DiscoverEvent(context.Background(), "test-event")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Events)
	assert.Equal(t, 1, stats.Markets)
	// The metadata service publishes no oracle, so the derivation ran on the
	// published condition id alone and the market cannot be marked verified.
	assert.Equal(t, 0, stats.Verified)
	assert.Equal(t, 1, stats.Unverified)

	stored, err := markets.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, testCollateral.Hex(), stored.CollateralToken)
	assert.False(t, stored.Verified)

	_, err = events.GetBySlug(context.Background(), "test-event")
	require.NoError(t, err)

	entry, ok := cat.Resolve(derived.Tokens.Yes.Hex())
	require.True(t, ok)
	assert.Equal(t, "m1", entry.Market.ID)
	assert.Equal(t, domain.OutcomeYes, entry.Outcome)

	entry, ok = cat.Resolve(derived.Tokens.No.Hex())
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeNo, entry.Outcome)
}

func TestDiscoverEventFillsMissingTokenIDs(t *testing.T) {
	cond := common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")
	ev := apiEventFixture(t, "no-tokens", map[string]any{
		"id":          "m2",
		"slug":        "tokenless",
		"conditionId": cond.Hex(),
		"active":      true,
	})

	markets := newMemMarketStore()
	cat := catalog.New()
	d := NewDiscovery(
		&fakeMeta{events: map[string]gamma.APIEvent{"no-tokens": ev}},
		markets, newMemEventStore(), cat, testCollateral,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := d.DiscoverEvent(context.Background(), "no-tokens")
	require.NoError(t, err)

	stored, err := markets.GetByID(context.Background(), "m2")
	require.NoError(t, err)
	assert.False(t, stored.Verified)
	require.NotEmpty(t, stored.YesTokenID)
	require.NotEmpty(t, stored.NoTokenID)

	want := ctf.DeriveBinaryMarket(common.Address{}, nil, cond, testCollateral)
	assert.Equal(t, want.Tokens.Yes.Hex(), stored.YesTokenID)
	assert.Equal(t, want.Tokens.No.Hex(), stored.NoTokenID)
}

func TestDiscoverEventSourceError(t *testing.T) {
	d := NewDiscovery(
		&fakeMeta{err: fmt.Errorf("gamma: %w", domain.ErrRPCTransient)},
		newMemMarketStore(), newMemEventStore(), catalog.New(), testCollateral,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := d.DiscoverEvent(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrRPCTransient)
}

func TestRefreshCatalogSwapsSnapshot(t *testing.T) {
	markets := newMemMarketStore()
	require.NoError(t, markets.Upsert(context.Background(), domain.Market{
		ID:         "m9",
		Slug:       "preexisting",
		YesTokenID: "0x00000000000000000000000000000000000000000000000000000000000000f1",
		NoTokenID:  "0x00000000000000000000000000000000000000000000000000000000000000f2",
		Status:     domain.MarketStatusActive,
	}))

	cat := catalog.New()
	d := NewDiscovery(
		&fakeMeta{}, markets, newMemEventStore(), cat, testCollateral,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, ok := cat.Resolve("0x00000000000000000000000000000000000000000000000000000000000000f1")
	require.False(t, ok)

	require.NoError(t, d.RefreshCatalog(context.Background()))

	entry, ok := cat.Resolve("0x00000000000000000000000000000000000000000000000000000000000000f1")
	require.True(t, ok)
	assert.Equal(t, "m9", entry.Market.ID)
}
