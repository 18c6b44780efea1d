package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// flushThreshold sizes the requeue cap: batches beyond several multiples of
// it are dropped instead of buffered when uploads keep failing.
const flushThreshold = 500

// EventArchiver buffers swap events evicted from the in-memory store and
// periodically uploads them as JSONL objects, so the bounded buffer never
// silently loses history. Uploads are best-effort: a failed flush keeps the
// batch and retries on the next tick.
type EventArchiver struct {
	writer domain.BlobWriter
	logger *slog.Logger

	mu      sync.Mutex
	pending []domain.SwapEvent
}

// NewEventArchiver creates an EventArchiver writing through writer.
func NewEventArchiver(writer domain.BlobWriter, logger *slog.Logger) *EventArchiver {
	return &EventArchiver{
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Archive queues evicted events for upload.
func (a *EventArchiver) Archive(events []domain.SwapEvent) {
	if len(events) == 0 {
		return
	}
	a.mu.Lock()
	a.pending = append(a.pending, events...)
	a.mu.Unlock()
}

// Run flushes the buffer on the given interval until ctx is cancelled, with
// one final flush on shutdown.
func (a *EventArchiver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			a.flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			a.flush(ctx)
		}
	}
}

// flush uploads the pending batch as one JSONL object keyed by day and
// flush timestamp.
func (a *EventArchiver) flush(ctx context.Context) {
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	payload, err := marshalJSONL(batch)
	if err != nil {
		a.logger.Error("marshal archive batch failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("archive/swaps/%s/%d.jsonl", now.Format("2006-01-02"), now.UnixNano())

	if err := a.writer.Put(ctx, key, payload, "application/x-ndjson"); err != nil {
		a.logger.Warn("archive upload failed, requeueing batch",
			slog.String("key", key),
			slog.Int("events", len(batch)),
			slog.String("error", err.Error()),
		)
		a.mu.Lock()
		// Requeue at the front to preserve order; drop when the buffer has
		// grown past several flush batches so a dead bucket cannot leak
		// memory forever.
		if len(a.pending) < 8*flushThreshold {
			a.pending = append(batch, a.pending...)
		}
		a.mu.Unlock()
		return
	}

	a.logger.Info("archived swap events",
		slog.String("key", key),
		slog.Int("events", len(batch)),
	)
}

// Pending returns the number of buffered events, for the status endpoint.
func (a *EventArchiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
