package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// SyncService defines the methods the sync handler requires from the service
// layer.
type SyncService interface {
	SyncState(ctx context.Context, streamKey string) (domain.SyncState, error)
	SyncStates(ctx context.Context) ([]domain.SyncState, error)
}

// SyncHandler exposes ingestion cursor state for operational visibility.
type SyncHandler struct {
	syncs  SyncService
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler with the given service and logger.
func NewSyncHandler(syncs SyncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		syncs:  syncs,
		logger: logger,
	}
}

// ListSyncStates returns the cursors of every known stream.
// GET /api/sync
func (h *SyncHandler) ListSyncStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.syncs.SyncStates(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list sync states failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list sync states")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"streams": states})
}

// GetSyncState returns the cursor for a single stream.
// GET /api/sync/{streamKey}
func (h *SyncHandler) GetSyncState(w http.ResponseWriter, r *http.Request) {
	streamKey := pathParam(r, "streamKey")
	if streamKey == "" {
		writeError(w, http.StatusBadRequest, "missing stream key")
		return
	}

	state, err := h.syncs.SyncState(r.Context(), streamKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown stream")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get sync state failed",
			slog.String("stream_key", streamKey),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get sync state")
		return
	}

	writeJSON(w, http.StatusOK, state)
}
