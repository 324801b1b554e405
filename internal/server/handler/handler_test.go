package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyindexer/internal/catalog"
	"github.com/alanyoungcy/polyindexer/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubMarketService struct {
	market domain.Market
	list   []domain.Market
	err    error
}

func (s *stubMarketService) GetMarket(context.Context, string) (domain.Market, error) {
	return s.market, s.err
}

func (s *stubMarketService) GetMarketBySlug(context.Context, string) (domain.Market, error) {
	return s.market, s.err
}

func (s *stubMarketService) GetMarketByToken(context.Context, string) (domain.Market, error) {
	return s.market, s.err
}

func (s *stubMarketService) ListActive(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return s.list, s.err
}

func (s *stubMarketService) Count(context.Context) (int64, error) {
	return int64(len(s.list)), s.err
}

type stubTradeService struct {
	trades []domain.Trade
	err    error

	gotOpts domain.TradeListOpts
}

func (s *stubTradeService) ListByMarket(_ context.Context, _ string, opts domain.TradeListOpts) ([]domain.Trade, error) {
	s.gotOpts = opts
	return s.trades, s.err
}

func (s *stubTradeService) ListByToken(_ context.Context, _ string, opts domain.TradeListOpts) ([]domain.Trade, error) {
	s.gotOpts = opts
	return s.trades, s.err
}

func (s *stubTradeService) CountByMarket(context.Context, string) (int64, error) {
	return int64(len(s.trades)), s.err
}

func getRequest(target string, pathValues map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	return req
}

func TestGetMarket(t *testing.T) {
	h := NewMarketHandler(&stubMarketService{
		market: domain.Market{ID: "m1", Slug: "test-market", Status: domain.MarketStatusActive},
	}, testLogger)

	rec := httptest.NewRecorder()
	h.GetMarket(rec, getRequest("/api/markets/m1", map[string]string{"id": "m1"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var got domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "m1", got.ID)
}

func TestGetMarketNotFound(t *testing.T) {
	h := NewMarketHandler(&stubMarketService{err: domain.ErrNotFound}, testLogger)

	rec := httptest.NewRecorder()
	h.GetMarket(rec, getRequest("/api/markets/missing", map[string]string{"id": "missing"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "market not found")
}

func TestGetMarketServiceError(t *testing.T) {
	h := NewMarketHandler(&stubMarketService{err: errors.New("pool closed")}, testLogger)

	rec := httptest.NewRecorder()
	h.GetMarket(rec, getRequest("/api/markets/m1", map[string]string{"id": "m1"}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal detail must not leak into the response body.
	assert.NotContains(t, rec.Body.String(), "pool closed")
}

func TestListMarketsSlugShortcut(t *testing.T) {
	h := NewMarketHandler(&stubMarketService{
		market: domain.Market{ID: "m1", Slug: "wanted"},
	}, testLogger)

	rec := httptest.NewRecorder()
	h.ListMarkets(rec, getRequest("/api/markets?slug=wanted", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "wanted", got.Slug)
}

func TestListMarketsPagination(t *testing.T) {
	h := NewMarketHandler(&stubMarketService{
		list: []domain.Market{{ID: "m1"}, {ID: "m2"}},
	}, testLogger)

	rec := httptest.NewRecorder()
	h.ListMarkets(rec, getRequest("/api/markets?limit=9999&offset=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Markets []domain.Market `json:"markets"`
		Total   int64           `json:"total"`
		Limit   int             `json:"limit"`
		Offset  int             `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Markets, 2)
	assert.Equal(t, int64(2), got.Total)
	assert.Equal(t, 500, got.Limit) // clamped
	assert.Equal(t, 10, got.Offset)
}

func TestListTradesFullPageSetsNextCursor(t *testing.T) {
	trades := make([]domain.Trade, 3)
	for i := range trades {
		trades[i] = domain.Trade{TxHash: fmt.Sprintf("0x%02d", i), LogIndex: uint64(i)}
	}
	svc := &stubTradeService{trades: trades}
	h := NewTradeHandler(svc, testLogger)

	rec := httptest.NewRecorder()
	h.ListByMarket(rec, getRequest("/api/markets/m1/trades?limit=3&cursor=6", map[string]string{"id": "m1"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Trades     []domain.Trade `json:"trades"`
		Limit      int            `json:"limit"`
		NextCursor *int           `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Trades, 3)
	require.NotNil(t, got.NextCursor)
	assert.Equal(t, 9, *got.NextCursor)
	assert.Equal(t, 6, svc.gotOpts.Cursor)
}

func TestListTradesShortPageOmitsNextCursor(t *testing.T) {
	h := NewTradeHandler(&stubTradeService{trades: []domain.Trade{{TxHash: "0x01"}}}, testLogger)

	rec := httptest.NewRecorder()
	h.ListByToken(rec, getRequest("/api/tokens/0xabc/trades?limit=100", map[string]string{"tokenID": "0xabc"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "next_cursor")
}

func TestListTradesOversizedLimitClamped(t *testing.T) {
	trades := make([]domain.Trade, maxTradeLimit)
	for i := range trades {
		trades[i] = domain.Trade{TxHash: fmt.Sprintf("0x%04d", i), LogIndex: uint64(i)}
	}
	svc := &stubTradeService{trades: trades}
	h := NewTradeHandler(svc, testLogger)

	rec := httptest.NewRecorder()
	h.ListByMarket(rec, getRequest("/api/markets/m1/trades?limit=5000", map[string]string{"id": "m1"}))

	require.Equal(t, http.StatusOK, rec.Code)
	// The clamped limit is what the service sees and what the page echoes,
	// so a full page still yields a next cursor.
	assert.Equal(t, maxTradeLimit, svc.gotOpts.Limit)

	var got struct {
		Limit      int  `json:"limit"`
		NextCursor *int `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, maxTradeLimit, got.Limit)
	require.NotNil(t, got.NextCursor)
	assert.Equal(t, maxTradeLimit, *got.NextCursor)
}

func TestListTradesBlockRangeFilters(t *testing.T) {
	svc := &stubTradeService{}
	h := NewTradeHandler(svc, testLogger)

	rec := httptest.NewRecorder()
	h.ListByMarket(rec, getRequest(
		"/api/markets/m1/trades?from_block=100&to_block=200",
		map[string]string{"id": "m1"},
	))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotOpts.FromBlock)
	require.NotNil(t, svc.gotOpts.ToBlock)
	assert.Equal(t, uint64(100), *svc.gotOpts.FromBlock)
	assert.Equal(t, uint64(200), *svc.gotOpts.ToBlock)
}

type stubSyncService struct {
	states []domain.SyncState
	err    error
}

func (s *stubSyncService) SyncState(_ context.Context, streamKey string) (domain.SyncState, error) {
	if s.err != nil {
		return domain.SyncState{}, s.err
	}
	for _, st := range s.states {
		if st.StreamKey == streamKey {
			return st, nil
		}
	}
	return domain.SyncState{}, domain.ErrNotFound
}

func (s *stubSyncService) SyncStates(context.Context) ([]domain.SyncState, error) {
	return s.states, s.err
}

func TestGetSyncState(t *testing.T) {
	h := NewSyncHandler(&stubSyncService{states: []domain.SyncState{
		{StreamKey: "polygon-orderfilled", LastProcessedBlock: 123456},
	}}, testLogger)

	rec := httptest.NewRecorder()
	h.GetSyncState(rec, getRequest("/api/sync/polygon-orderfilled", map[string]string{"streamKey": "polygon-orderfilled"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.SyncState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(123456), got.LastProcessedBlock)

	rec = httptest.NewRecorder()
	h.GetSyncState(rec, getRequest("/api/sync/unknown", map[string]string{"streamKey": "unknown"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	cat := catalog.New()
	cat.Swap(catalog.NewSnapshot([]domain.Market{{
		ID:          "m1",
		ConditionID: "0xc1",
		YesTokenID:  "0xaaa1",
		NoTokenID:   "0xaaa2",
	}}))
	h := NewHealthHandler(cat, &stubSyncService{states: []domain.SyncState{
		{StreamKey: "polygon-orderfilled", LastProcessedBlock: 123456},
	}}, testLogger)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Status        string            `json:"status"`
		CatalogTokens int               `json:"catalog_tokens"`
		Streams       map[string]uint64 `json:"streams"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 2, got.CatalogTokens)
	assert.Equal(t, uint64(123456), got.Streams["polygon-orderfilled"])
}

func TestHealthCheckDegradedWhenStoreUnreachable(t *testing.T) {
	h := NewHealthHandler(catalog.New(), &stubSyncService{err: errors.New("dial tcp: refused")}, testLogger)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.NotContains(t, rec.Body.String(), "dial tcp")
}

type stubEventService struct {
	event   domain.Event
	markets []domain.Market
	err     error
}

func (s *stubEventService) GetEvent(context.Context, string) (domain.Event, error) {
	return s.event, s.err
}

func (s *stubEventService) ListEventMarkets(context.Context, string) ([]domain.Market, error) {
	return s.markets, s.err
}

func TestGetEvent(t *testing.T) {
	h := NewEventHandler(&stubEventService{
		event: domain.Event{Slug: "election-2028", Title: "Election 2028"},
	}, testLogger)

	rec := httptest.NewRecorder()
	h.GetEvent(rec, getRequest("/api/events/election-2028", map[string]string{"slug": "election-2028"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "election-2028", got.Slug)
}

func TestGetEventNotFound(t *testing.T) {
	h := NewEventHandler(&stubEventService{err: domain.ErrNotFound}, testLogger)

	rec := httptest.NewRecorder()
	h.GetEvent(rec, getRequest("/api/events/missing", map[string]string{"slug": "missing"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "event not found")
}

func TestListEventMarkets(t *testing.T) {
	h := NewEventHandler(&stubEventService{
		markets: []domain.Market{{ID: "m1", EventSlug: "election-2028"}, {ID: "m2", EventSlug: "election-2028"}},
	}, testLogger)

	rec := httptest.NewRecorder()
	h.ListEventMarkets(rec, getRequest("/api/events/election-2028/markets", map[string]string{"slug": "election-2028"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		EventSlug string          `json:"event_slug"`
		Total     int             `json:"total"`
		Markets   []domain.Market `json:"markets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "election-2028", got.EventSlug)
	assert.Equal(t, 2, got.Total)
	assert.Len(t, got.Markets, 2)
}

func TestListEventMarketsUnknownEvent(t *testing.T) {
	h := NewEventHandler(&stubEventService{err: domain.ErrNotFound}, testLogger)

	rec := httptest.NewRecorder()
	h.ListEventMarkets(rec, getRequest("/api/events/missing/markets", map[string]string{"slug": "missing"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "event not found")
}
