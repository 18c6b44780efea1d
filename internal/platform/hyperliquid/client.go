package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// Client is the REST client for the exchange info endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an info client. baseURL is the API root, e.g.
// "https://api.hyperliquid-testnet.xyz".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Book fetches the current L2 order book for market. Bids and asks come back
// best-first; an entirely missing side yields an empty slice, not an error.
func (c *Client) Book(ctx context.Context, market string) (domain.OrderbookSnapshot, error) {
	body, err := c.doInfo(ctx, map[string]string{
		"type": "l2Book",
		"coin": market,
	})
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("hyperliquid: l2Book %s: %w", market, err)
	}

	var resp l2BookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("hyperliquid: decode l2Book: %w", err)
	}

	snap := domain.OrderbookSnapshot{
		Market:    market,
		Timestamp: time.Now().UTC(),
	}
	if len(resp.Levels) > 0 {
		snap.Bids = toLevels(resp.Levels[0])
	}
	if len(resp.Levels) > 1 {
		snap.Asks = toLevels(resp.Levels[1])
	}
	return snap, nil
}

// SzDecimals looks up the size quantization decimals for market from the spot
// metadata. Returns domain.ErrNotFound for an unknown market.
func (c *Client) SzDecimals(ctx context.Context, market string) (int, error) {
	body, err := c.doInfo(ctx, map[string]string{"type": "spotMeta"})
	if err != nil {
		return 0, fmt.Errorf("hyperliquid: spotMeta: %w", err)
	}

	var resp spotMetaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("hyperliquid: decode spotMeta: %w", err)
	}

	for _, m := range resp.Universe {
		if m.Name == market {
			return m.SzDecimals, nil
		}
	}
	return 0, fmt.Errorf("hyperliquid: market %s: %w", market, domain.ErrNotFound)
}

// doInfo POSTs a query to the /info endpoint and returns the raw body.
func (c *Client) doInfo(ctx context.Context, query any) ([]byte, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func toLevels(raw []rawLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		out = append(out, domain.PriceLevel{Price: l.Px, Size: l.Sz})
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ domain.BookSource = (*Client)(nil)
