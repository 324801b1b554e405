package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// TradeService defines the methods the trade handler requires from the
// service layer.
type TradeService interface {
	ListByMarket(ctx context.Context, marketID string, opts domain.TradeListOpts) ([]domain.Trade, error)
	ListByToken(ctx context.Context, tokenID string, opts domain.TradeListOpts) ([]domain.Trade, error)
	CountByMarket(ctx context.Context, marketID string) (int64, error)
}

// TradeHandler serves trade history HTTP endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// listTradesResponse wraps the list endpoint output with paging metadata.
// NextCursor points at the next page, or is absent when the page was short.
type listTradesResponse struct {
	Trades     []domain.Trade `json:"trades"`
	Limit      int            `json:"limit"`
	NextCursor *int           `json:"next_cursor,omitempty"`
}

func tradePage(trades []domain.Trade, opts domain.TradeListOpts) listTradesResponse {
	resp := listTradesResponse{
		Trades: trades,
		Limit:  opts.Limit,
	}
	if len(trades) == opts.Limit {
		next := opts.Cursor + len(trades)
		resp.NextCursor = &next
	}
	return resp
}

// ListByMarket returns trades for a market, newest first.
// GET /api/markets/{id}/trades?limit=100&cursor=0&from_block=N&to_block=M
func (h *TradeHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	opts := parseTradeListOpts(r)
	trades, err := h.trades.ListByMarket(r.Context(), id, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades by market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, tradePage(trades, opts))
}

// ListByToken returns trades for an outcome token, newest first.
// GET /api/tokens/{tokenID}/trades?limit=100&cursor=0
func (h *TradeHandler) ListByToken(w http.ResponseWriter, r *http.Request) {
	tokenID := pathParam(r, "tokenID")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token id")
		return
	}

	opts := parseTradeListOpts(r)
	trades, err := h.trades.ListByToken(r.Context(), tokenID, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades by token failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, tradePage(trades, opts))
}
