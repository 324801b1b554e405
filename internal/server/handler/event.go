package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// EventService defines the methods the event handler requires from the
// service layer.
type EventService interface {
	GetEvent(ctx context.Context, slug string) (domain.Event, error)
	ListEventMarkets(ctx context.Context, slug string) ([]domain.Market, error)
}

// EventHandler serves event-related HTTP endpoints.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler with the given service and logger.
func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// GetEvent returns a single event by its slug.
// GET /api/events/{slug}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing event slug")
		return
	}

	event, err := h.events.GetEvent(r.Context(), slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get event failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// eventMarketsResponse wraps the markets of one event.
type eventMarketsResponse struct {
	EventSlug string          `json:"event_slug"`
	Total     int             `json:"total"`
	Markets   []domain.Market `json:"markets"`
}

// ListEventMarkets returns every market grouped under an event.
// GET /api/events/{slug}/markets
func (h *EventHandler) ListEventMarkets(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing event slug")
		return
	}

	markets, err := h.events.ListEventMarkets(r.Context(), slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list event markets failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list event markets")
		return
	}

	writeJSON(w, http.StatusOK, eventMarketsResponse{
		EventSlug: slug,
		Total:     len(markets),
		Markets:   markets,
	})
}
