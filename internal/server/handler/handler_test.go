package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlaslabs-io/hedgewatch/internal/chain"
	"github.com/atlaslabs-io/hedgewatch/internal/domain"
	"github.com/atlaslabs-io/hedgewatch/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedStore(t *testing.T, blocks ...uint64) *store.EventStore {
	t.Helper()
	s := store.NewEventStore(0)
	for i, b := range blocks {
		s.Append(domain.SwapEvent{
			TxHash:      "0x" + strings.Repeat("a", 63) + string(rune('0'+i%10)),
			BlockNumber: b,
			LogIndex:    uint64(i),
			AmountIn:    big.NewInt(1),
			AmountOut:   big.NewInt(2),
		})
	}
	return s
}

type fakeHistory struct {
	events   []domain.SwapEvent
	err      error
	gotLimit int
	gotSince uint64
	calls    int
}

func (f *fakeHistory) InsertBatch(context.Context, []domain.SwapEvent) error { return nil }

func (f *fakeHistory) ListRecent(_ context.Context, limit int, sinceBlock uint64) ([]domain.SwapEvent, error) {
	f.calls++
	f.gotLimit = limit
	f.gotSince = sinceBlock
	return f.events, f.err
}

type fakeBookCache struct {
	snap domain.OrderbookSnapshot
	err  error
}

func (f *fakeBookCache) SetBook(context.Context, domain.OrderbookSnapshot) error { return nil }

func (f *fakeBookCache) GetBook(context.Context, string) (domain.OrderbookSnapshot, error) {
	return f.snap, f.err
}

type fakeBacklog struct{ n int }

func (f fakeBacklog) Pending() int { return f.n }

func TestEventsListAppliesLimitAndSinceBlock(t *testing.T) {
	h := NewEventsHandler(seedStore(t, 10, 20, 30, 40), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=2&since_block=20", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []domain.SwapEvent `json:"events"`
		Count  int                `json:"count"`
		Total  uint64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, uint64(4), body.Total)
	// Newest two at or above block 20, oldest first.
	require.Len(t, body.Events, 2)
	assert.Equal(t, uint64(30), body.Events[0].BlockNumber)
	assert.Equal(t, uint64(40), body.Events[1].BlockNumber)
}

func TestEventsListDefaults(t *testing.T) {
	h := NewEventsHandler(seedStore(t, 1, 2), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Contains(t, rec.Body.String(), `"source":"memory"`)
}

func TestEventsListFallsBackToHistoryAfterEviction(t *testing.T) {
	// Capacity 2, three appends: block 1 is evicted from the buffer.
	s := store.NewEventStore(2)
	for _, b := range []uint64{1, 2, 3} {
		s.Append(domain.SwapEvent{
			TxHash:      "0xhist",
			BlockNumber: b,
			AmountIn:    big.NewInt(1),
			AmountOut:   big.NewInt(2),
		})
	}
	history := &fakeHistory{events: []domain.SwapEvent{
		{TxHash: "0xhist", BlockNumber: 1, AmountIn: big.NewInt(1), AmountOut: big.NewInt(2)},
		{TxHash: "0xhist", BlockNumber: 2, AmountIn: big.NewInt(1), AmountOut: big.NewInt(2)},
		{TxHash: "0xhist", BlockNumber: 3, AmountIn: big.NewInt(1), AmountOut: big.NewInt(2)},
	}}
	h := NewEventsHandler(s, history, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=3", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, history.calls)
	assert.Equal(t, 3, history.gotLimit)

	var body struct {
		Events []domain.SwapEvent `json:"events"`
		Count  int                `json:"count"`
		Source string             `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "postgres", body.Source)
	require.Len(t, body.Events, 3)
	assert.Equal(t, uint64(1), body.Events[0].BlockNumber)
}

func TestEventsListStaysInMemoryWhenBufferCovers(t *testing.T) {
	s := store.NewEventStore(2)
	for _, b := range []uint64{1, 2, 3} {
		s.Append(domain.SwapEvent{
			TxHash:      "0xhist",
			BlockNumber: b,
			AmountIn:    big.NewInt(1),
			AmountOut:   big.NewInt(2),
		})
	}
	history := &fakeHistory{}
	h := NewEventsHandler(s, history, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=2", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, history.calls)
	assert.Contains(t, rec.Body.String(), `"source":"memory"`)
}

func TestHealthReportsCachedBookAndArchiveBacklog(t *testing.T) {
	sub := chain.NewSubscriber("ws://localhost:0", nil, nil, testLogger())
	books := &fakeBookCache{snap: domain.OrderbookSnapshot{
		Market: "PURR/USDC",
		Bids:   []domain.PriceLevel{{Price: 9.9, Size: 10}},
		Asks:   []domain.PriceLevel{{Price: 10.1, Size: 10}},
	}}
	h := NewHealthHandler(sub, seedStore(t, 1), books, fakeBacklog{n: 7},
		ServiceInfo{Market: "PURR/USDC", Mode: "full"}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Book struct {
			Market string  `json:"market"`
			Mid    float64 `json:"mid"`
		} `json:"book"`
		Events struct {
			Stored         int `json:"stored"`
			PendingArchive int `json:"pendingArchive"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PURR/USDC", body.Book.Market)
	assert.InDelta(t, 10.0, body.Book.Mid, 1e-9)
	assert.Equal(t, 1, body.Events.Stored)
	assert.Equal(t, 7, body.Events.PendingArchive)
}

func TestHealthOmitsBookWhenCacheEmpty(t *testing.T) {
	sub := chain.NewSubscriber("ws://localhost:0", nil, nil, testLogger())
	books := &fakeBookCache{err: domain.ErrNotFound}
	h := NewHealthHandler(sub, seedStore(t, 1), books, nil,
		ServiceInfo{Market: "PURR/USDC", Mode: "watch"}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"book":null`)
	assert.NotContains(t, rec.Body.String(), "pendingArchive")
}

func TestWatchAddValidatesAddress(t *testing.T) {
	sub := chain.NewSubscriber("ws://localhost:0", nil, nil, testLogger())
	h := NewWatchHandler(sub, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/watch",
		strings.NewReader(`{"address":"not-an-address"}`))
	rec := httptest.NewRecorder()
	h.Add(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sub.Watched())
}

func TestWatchAddChecksumsAndDeduplicates(t *testing.T) {
	sub := chain.NewSubscriber("ws://localhost:0", nil, nil, testLogger())
	h := NewWatchHandler(sub, testLogger())

	body := `{"address":"0xab5801a7d398351b8be11c439e05c5b3259aec9b"}`

	req := httptest.NewRequest(http.MethodPost, "/api/watch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Add(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, sub.Watched(), 1)
	assert.Equal(t, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", sub.Watched()[0])

	// Same address again is a no-op.
	req = httptest.NewRequest(http.MethodPost, "/api/watch", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.Add(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sub.Watched(), 1)
}

func TestExecutionsListWithoutStore(t *testing.T) {
	h := NewExecutionsHandler(nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/executions", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
