package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

const (
	// writeWait is the time allowed to write a frame to the node.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the node.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// retryDelay is the fixed pause before a reconnect attempt. The loop is
	// supervised and never gives up, so there is no backoff escalation.
	retryDelay = 2 * time.Second
)

// SubscriberState labels the connection lifecycle for the status endpoint.
type SubscriberState string

const (
	StateDisconnected SubscriberState = "disconnected"
	StateConnecting   SubscriberState = "connecting"
	StateSubscribing  SubscriberState = "subscribing"
	StateStreaming    SubscriberState = "streaming"
)

// EventHandler receives each successfully decoded swap event, in arrival
// order. It must not block for long: anything slow belongs in a goroutine it
// spawns itself.
type EventHandler func(ctx context.Context, ev domain.SwapEvent)

// Subscriber owns the persistent eth_subscribe connection. It is an explicit
// state machine: Disconnected -> Connecting -> Subscribing -> Streaming, and
// back to Disconnected on any failure, forever. Decode failures drop the log
// and keep streaming; only transport and subscription failures tear the
// connection down.
type Subscriber struct {
	wsURL   string
	handler EventHandler
	logger  *slog.Logger

	mu            sync.RWMutex
	watched       map[string]struct{} // checksummed addresses
	filterVersion int64
	state         SubscriberState
	subID         string
	lastEventAt   time.Time
	onState       func(state SubscriberState, subID string)

	reqID int
}

// NewSubscriber creates a Subscriber watching the given initial addresses.
// Addresses must already be checksummed (see ChecksumAddress).
func NewSubscriber(wsURL string, watched []string, handler EventHandler, logger *slog.Logger) *Subscriber {
	set := make(map[string]struct{}, len(watched))
	for _, a := range watched {
		set[a] = struct{}{}
	}
	return &Subscriber{
		wsURL:   wsURL,
		handler: handler,
		logger:  logger.With(slog.String("component", "subscriber")),
		watched: set,
		state:   StateDisconnected,
	}
}

// AddWatched adds a checksummed address to the filter set. It returns true
// when the address was not already present; the live subscription is
// refreshed by the streaming loop.
func (s *Subscriber) AddWatched(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[addr]; ok {
		return false
	}
	s.watched[addr] = struct{}{}
	s.filterVersion++
	return true
}

// Watched returns the sorted filter set.
func (s *Subscriber) Watched() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.watched))
	for a := range s.watched {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// OnStateChange registers fn to be invoked after each state transition, with
// the new state and subscription id. Register before Run; fn must not block.
func (s *Subscriber) OnStateChange(fn func(state SubscriberState, subID string)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// Status reports the current connection state for health checks.
func (s *Subscriber) Status() (SubscriberState, string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.subID, s.lastEventAt
}

// Run drives the reconnect-forever loop. It only returns when ctx is
// cancelled; every other failure transitions back to Disconnected and retries
// after the fixed delay.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.stream(ctx)
		s.setState(StateDisconnected, "")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("stream ended, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", retryDelay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// stream runs one connection attempt end to end: dial, subscribe, and pump
// notifications until something fails.
func (s *Subscriber) stream(ctx context.Context) error {
	s.setState(StateConnecting, "")

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("chain: connect: %w", err)
	}
	defer conn.Close()

	// Close the connection when ctx is cancelled so the blocking read below
	// unblocks promptly.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go s.pingLoop(conn, stop)

	// appliedVersion -1 forces the initial subscribe before the first read.
	var (
		appliedVersion int64 = -1
		pendingID      int
		subID          string
	)

	for {
		if v := s.currentFilterVersion(); v != appliedVersion {
			s.setState(StateSubscribing, "")
			if subID != "" {
				// Best-effort unsubscribe of the stale id; the ack is ignored
				// when it comes back through the read loop.
				_ = s.writeRequest(conn, s.nextID(), "eth_unsubscribe", []any{subID})
				subID = ""
			}
			id := s.nextID()
			if err := s.writeRequest(conn, id, "eth_subscribe", []any{"logs", s.filterParams()}); err != nil {
				return fmt.Errorf("chain: subscribe: %w", err)
			}
			pendingID = id
			appliedVersion = v
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("chain: read: %w", err)
		}

		var frame rpcFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// Not even JSON-RPC; drop and keep reading.
			continue
		}

		switch {
		case frame.Method == "eth_subscription":
			s.handleNotification(ctx, frame.Params)

		case frame.ID != 0 && frame.ID == pendingID:
			if frame.Error != nil {
				return fmt.Errorf("chain: subscribe rejected: %s (code %d)", frame.Error.Message, frame.Error.Code)
			}
			var id string
			if err := json.Unmarshal(frame.Result, &id); err != nil || id == "" {
				return fmt.Errorf("chain: subscribe ack missing subscription id")
			}
			subID = id
			pendingID = 0
			s.setState(StateStreaming, subID)
			s.logger.Info("subscribed to logs",
				slog.String("subscription_id", subID),
				slog.Any("watched", s.Watched()),
			)

		default:
			// Unsubscribe acks and anything else we did not ask about.
		}
	}
}

// handleNotification extracts the log payload from an eth_subscription frame,
// decodes it, and hands the event to the pipeline. Decode failures drop the
// log and never stall the stream.
func (s *Subscriber) handleNotification(ctx context.Context, params json.RawMessage) {
	var p struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}

	var rawLog domain.RawLog
	if err := json.Unmarshal(p.Result, &rawLog); err != nil {
		s.logger.Debug("dropping unparseable log payload", slog.String("error", err.Error()))
		return
	}
	if rawLog.Removed {
		// Reorged-out log; the pool will re-emit on the canonical chain.
		return
	}

	ev, err := DecodeSwapLog(rawLog)
	if err != nil {
		s.logger.Debug("dropping undecodable log",
			slog.String("tx_hash", rawLog.TransactionHash),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.lastEventAt = time.Now().UTC()
	s.mu.Unlock()

	s.handler(ctx, ev)
}

// pingLoop keeps the connection alive; a failed write closes the connection,
// which surfaces as a read error in the streaming loop.
func (s *Subscriber) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// filterParams builds the eth_subscribe logs filter from the watched set.
// The zero address placeholder keeps the subscription valid (matching
// nothing) when the set is empty.
func (s *Subscriber) filterParams() map[string]any {
	addrs := s.Watched()
	if len(addrs) == 0 {
		addrs = []string{"0x0000000000000000000000000000000000000000"}
	}
	return map[string]any{
		"address": addrs,
		"topics":  []string{SwapTopic0.Hex()},
	}
}

func (s *Subscriber) currentFilterVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterVersion
}

func (s *Subscriber) setState(state SubscriberState, subID string) {
	s.mu.Lock()
	if state == s.state && subID == s.subID {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.subID = subID
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(state, subID)
	}
}

func (s *Subscriber) nextID() int {
	s.reqID++
	return s.reqID
}

// writeRequest sends one JSON-RPC request frame.
func (s *Subscriber) writeRequest(conn *websocket.Conn, id int, method string, params []any) error {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// rpcFrame is the superset of response and notification shapes the node
// sends. ID is zero for notifications (our request ids start at 1).
type rpcFrame struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
