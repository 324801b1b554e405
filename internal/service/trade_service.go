package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// maxTradePageSize caps a single trade page regardless of the requested limit.
const maxTradePageSize = 1000

// TradeService serves trade history reads and sync cursor inspection.
type TradeService struct {
	trades domain.TradeStore
	syncs  domain.SyncStateStore
	logger *slog.Logger
}

// NewTradeService creates a TradeService.
func NewTradeService(trades domain.TradeStore, syncs domain.SyncStateStore, logger *slog.Logger) *TradeService {
	return &TradeService{
		trades: trades,
		syncs:  syncs,
		logger: logger,
	}
}

func clampTradeOpts(opts domain.TradeListOpts) domain.TradeListOpts {
	if opts.Limit <= 0 || opts.Limit > maxTradePageSize {
		opts.Limit = maxTradePageSize
	}
	if opts.Cursor < 0 {
		opts.Cursor = 0
	}
	return opts
}

// ListByMarket returns trades for a market, newest first.
func (s *TradeService) ListByMarket(ctx context.Context, marketID string, opts domain.TradeListOpts) ([]domain.Trade, error) {
	trades, err := s.trades.ListByMarket(ctx, marketID, clampTradeOpts(opts))
	if err != nil {
		return nil, fmt.Errorf("trade_service: list by market %q: %w", marketID, err)
	}
	return trades, nil
}

// ListByToken returns trades for an outcome token, newest first.
func (s *TradeService) ListByToken(ctx context.Context, tokenID string, opts domain.TradeListOpts) ([]domain.Trade, error) {
	trades, err := s.trades.ListByToken(ctx, tokenID, clampTradeOpts(opts))
	if err != nil {
		return nil, fmt.Errorf("trade_service: list by token %q: %w", tokenID, err)
	}
	return trades, nil
}

// CountByMarket returns the number of recorded trades for a market.
func (s *TradeService) CountByMarket(ctx context.Context, marketID string) (int64, error) {
	count, err := s.trades.CountByMarket(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("trade_service: count by market %q: %w", marketID, err)
	}
	return count, nil
}

// SyncState returns the ingestion cursor for a stream.
func (s *TradeService) SyncState(ctx context.Context, streamKey string) (domain.SyncState, error) {
	st, err := s.syncs.Get(ctx, streamKey)
	if err != nil {
		return domain.SyncState{}, fmt.Errorf("trade_service: sync state %q: %w", streamKey, err)
	}
	return st, nil
}

// SyncStates returns the cursors of every known stream.
func (s *TradeService) SyncStates(ctx context.Context) ([]domain.SyncState, error) {
	states, err := s.syncs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list sync states: %w", err)
	}
	return states, nil
}
