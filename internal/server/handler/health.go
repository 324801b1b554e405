package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyindexer/internal/catalog"
)

// HealthHandler serves the health-check endpoint. Beyond liveness it reports
// the catalog size and the per-stream ingestion cursors, so an operator can
// see at a glance whether the indexer is keeping up.
type HealthHandler struct {
	catalog *catalog.Catalog
	syncs   SyncService
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler over the given catalog and sync
// state source.
func NewHealthHandler(cat *catalog.Catalog, syncs SyncService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		catalog: cat,
		syncs:   syncs,
		logger:  logger,
	}
}

// HealthCheck reports service health. A failing sync-state read means the
// store is unreachable and the service is degraded, returned as 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	states, err := h.syncs.SyncStates(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: health sync state read failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  "store unreachable",
		})
		return
	}

	streams := make(map[string]uint64, len(states))
	for _, st := range states {
		streams[st.StreamKey] = st.LastProcessedBlock
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"catalog_tokens": h.catalog.Snapshot().Size(),
		"streams":        streams,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
