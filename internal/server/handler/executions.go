package handler

import (
	"log/slog"
	"net/http"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// ExecutionsHandler serves persisted rebalance executions. The store is
// optional: watch mode and Postgres-less deployments run without one.
type ExecutionsHandler struct {
	store  domain.ExecutionStore
	logger *slog.Logger
}

// NewExecutionsHandler creates an ExecutionsHandler. store may be nil.
func NewExecutionsHandler(store domain.ExecutionStore, logger *slog.Logger) *ExecutionsHandler {
	return &ExecutionsHandler{
		store:  store,
		logger: logHandler(logger, "executions"),
	}
}

// List returns recent rebalance executions, newest first.
// GET /api/executions
func (h *ExecutionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "execution history requires persistence")
		return
	}

	limit := parseLimit(r, 50, 500)

	execs, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list executions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executions": execs,
		"count":      len(execs),
	})
}
