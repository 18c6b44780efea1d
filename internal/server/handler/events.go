package handler

import (
	"log/slog"
	"net/http"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
	"github.com/atlaslabs-io/hedgewatch/internal/store"
)

// EventsHandler serves the in-memory swap event buffer, falling back to the
// durable store for history the buffer has already evicted.
type EventsHandler struct {
	events  *store.EventStore
	history domain.SwapStore // nil without Postgres
	logger  *slog.Logger
}

// NewEventsHandler creates an EventsHandler backed by events. history may be
// nil, in which case only the buffered window is served.
func NewEventsHandler(events *store.EventStore, history domain.SwapStore, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		events:  events,
		history: history,
		logger:  logHandler(logger, "events"),
	}
}

// List returns buffered swap events, oldest first. Supports ?limit= and
// ?since_block= filters.
// GET /api/events
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 2000)
	sinceBlock := parseUint(r, "since_block")

	events := h.events.Snapshot(limit, sinceBlock)
	source := "memory"

	// The buffer only holds the newest window. When older events have been
	// evicted and the buffer cannot satisfy the request, serve from Postgres
	// instead.
	if h.history != nil && len(events) < limit && h.events.Total() > uint64(h.events.Len()) {
		rows, err := h.history.ListRecent(r.Context(), limit, sinceBlock)
		if err != nil {
			h.logger.Warn("history lookup failed, serving buffered window",
				slog.String("error", err.Error()),
			)
		} else {
			events = rows
			source = "postgres"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
		"total":  h.events.Total(),
		"source": source,
	})
}
