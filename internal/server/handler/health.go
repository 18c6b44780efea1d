package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/atlaslabs-io/hedgewatch/internal/chain"
	"github.com/atlaslabs-io/hedgewatch/internal/domain"
	"github.com/atlaslabs-io/hedgewatch/internal/store"
)

// ServiceInfo is the static configuration echoed by the health endpoint so
// an operator can confirm what the process is actually running with.
type ServiceInfo struct {
	Market          string
	Mode            string
	TradingEnabled  bool
	Band            float64
	CooldownSeconds float64
	StartedAt       time.Time
}

// Backlog reports how many evicted events still await archive upload.
// Implemented by blob/s3.EventArchiver.
type Backlog interface {
	Pending() int
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	sub     *chain.Subscriber
	events  *store.EventStore
	books   domain.BookCache
	backlog Backlog // nil without the S3 archiver
	info    ServiceInfo
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. books and backlog may be nil;
// their sections are omitted from the response.
func NewHealthHandler(
	sub *chain.Subscriber,
	events *store.EventStore,
	books domain.BookCache,
	backlog Backlog,
	info ServiceInfo,
	logger *slog.Logger,
) *HealthHandler {
	return &HealthHandler{
		sub:     sub,
		events:  events,
		books:   books,
		backlog: backlog,
		info:    info,
		logger:  logHandler(logger, "health"),
	}
}

// HealthCheck reports liveness plus the live watch and subscription state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	state, subID, lastEventAt := h.sub.Status()

	var lastEvent *string
	if !lastEventAt.IsZero() {
		s := lastEventAt.UTC().Format(time.RFC3339)
		lastEvent = &s
	}

	eventsInfo := map[string]any{
		"stored": h.events.Len(),
		"total":  h.events.Total(),
	}
	if h.backlog != nil {
		eventsInfo["pendingArchive"] = h.backlog.Pending()
	}

	// Last cached book snapshot, null when none is fresh.
	var book map[string]any
	if h.books != nil {
		if snap, err := h.books.GetBook(r.Context(), h.info.Market); err == nil {
			book = map[string]any{
				"market":     snap.Market,
				"mid":        snap.MidPrice(),
				"bestBid":    snap.BestBid(),
				"bestAsk":    snap.BestAsk(),
				"capturedAt": snap.Timestamp.UTC().Format(time.RFC3339),
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"uptimeSeconds": int64(time.Since(h.info.StartedAt).Seconds()),
		"wsEndpoint":    "/ws",
		"subscription": map[string]any{
			"state":       string(state),
			"id":          subID,
			"lastEventAt": lastEvent,
			"topic0":      chain.SwapTopic0.Hex(),
			"watching":    h.sub.Watched(),
		},
		"events": eventsInfo,
		"book":   book,
		"rebalance": map[string]any{
			"market":          h.info.Market,
			"mode":            h.info.Mode,
			"tradingEnabled":  h.info.TradingEnabled,
			"band":            h.info.Band,
			"cooldownSeconds": h.info.CooldownSeconds,
		},
	})
}
