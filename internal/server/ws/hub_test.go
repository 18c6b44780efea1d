package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// fakeBus serves one in-memory channel per subscribe call.
type fakeBus struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string]chan []byte)}
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch, ok := b.subs[channel]
	b.mu.Unlock()
	if ok {
		ch <- payload
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 16)
	b.subs[channel] = ch
	return ch, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func httpHandlerFunc(h *Hub) http.Handler {
	return http.HandlerFunc(h.HandleWS)
}

func dial(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHubSendsHelloOnConnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(newFakeBus(), Config{
		Market:  "PURR/USDC",
		Mode:    "full",
		Watched: func() []string { return []string{"0xabc", "0xdef"} },
	}, testLogger())
	go hub.Run(ctx)

	srv := httptest.NewServer(httpHandlerFunc(hub))
	defer srv.Close()

	conn := dial(t, srv.URL)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var env struct {
		Type string       `json:"type"`
		Data HelloPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, domain.MsgTypeHello, env.Type)
	assert.Equal(t, []string{"0xabc", "0xdef"}, env.Data.Watching)
	assert.Equal(t, "PURR/USDC", env.Data.Market)
	assert.Equal(t, "full", env.Data.Mode)
}

func TestHubFansOutBusMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newFakeBus()
	hub := NewHub(bus, Config{Market: "PURR/USDC", Mode: "watch"}, testLogger())
	go hub.Run(ctx)

	srv := httptest.NewServer(httpHandlerFunc(hub))
	defer srv.Close()

	conn := dial(t, srv.URL)
	defer conn.Close()

	// Drain the greeting first.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	// Wait until the hub has registered the client before publishing.
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	payload := []byte(`{"type":"swap","data":{"txHash":"0x1"}}`)
	require.NoError(t, bus.Publish(ctx, domain.ChannelSwap, payload))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(raw))
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(newFakeBus(), Config{}, testLogger())
	go hub.Run(ctx)

	srv := httptest.NewServer(httpHandlerFunc(hub))
	defer srv.Close()

	conn := dial(t, srv.URL)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}
