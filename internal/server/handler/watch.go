package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/atlaslabs-io/hedgewatch/internal/chain"
	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// WatchHandler manages the watched pool contract set at runtime.
type WatchHandler struct {
	sub    *chain.Subscriber
	logger *slog.Logger
}

// NewWatchHandler creates a WatchHandler controlling sub's filter.
func NewWatchHandler(sub *chain.Subscriber, logger *slog.Logger) *WatchHandler {
	return &WatchHandler{
		sub:    sub,
		logger: logHandler(logger, "watch"),
	}
}

// List returns the watched contract addresses.
// GET /api/watch
func (h *WatchHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"watching": h.sub.Watched(),
	})
}

type addWatchRequest struct {
	Address string `json:"address"`
}

// Add validates and adds a contract address to the watch set. The live
// subscription picks the new filter up without dropping the connection.
// POST /api/watch
func (h *WatchHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	addr, err := chain.ChecksumAddress(req.Address)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, "invalid contract address")
			return
		}
		writeError(w, http.StatusInternalServerError, "address validation failed")
		return
	}

	added := h.sub.AddWatched(addr)
	if added {
		h.logger.Info("watch target added", slog.String("address", addr))
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"address":  addr,
		"added":    added,
		"watching": h.sub.Watched(),
	})
}
