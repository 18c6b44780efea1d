package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/atlaslabs-io/hedgewatch/internal/crypto"
	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// Exchange submits signed orders to the exchange endpoint. It implements
// domain.OrderPlacer.
type Exchange struct {
	baseURL    string
	market     string
	signer     *crypto.Signer
	httpClient *http.Client
}

// NewExchange creates an order client for one market using signer's key.
func NewExchange(baseURL, market string, signer *crypto.Signer) *Exchange {
	return &Exchange{
		baseURL: baseURL,
		market:  market,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// PlaceIOC submits one immediate-or-cancel limit order. The venue fills what
// crosses and cancels the remainder; a fully unfilled order still comes back
// accepted with a cancel status.
func (e *Exchange) PlaceIOC(ctx context.Context, market string, buy bool, price, size float64) (domain.OrderAck, error) {
	action := orderAction{
		Type: "order",
		Orders: []wireOrder{{
			Asset:   market,
			IsBuy:   buy,
			LimitPx: formatDecimal(price),
			Size:    formatDecimal(size),
			OrderType: orderType{
				Limit: limitType{Tif: "Ioc"},
			},
		}},
	}

	actionJSON, err := json.Marshal(action)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("hyperliquid: marshal action: %w", err)
	}

	nonce := time.Now().UnixMilli()
	sig, err := e.signer.SignAction(actionJSON, nonce)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("hyperliquid: sign order: %w", err)
	}

	reqBody := orderRequest{
		Action: action,
		Nonce:  nonce,
		Signature: signature{
			R: sig.R,
			S: sig.S,
			V: sig.V,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("hyperliquid: marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/exchange", bytes.NewReader(payload))
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("hyperliquid: build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("hyperliquid: place order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("hyperliquid: read order response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.OrderAck{}, fmt.Errorf("hyperliquid: order status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var orderResp orderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return domain.OrderAck{}, fmt.Errorf("hyperliquid: decode order response: %w", err)
	}

	return toAck(orderResp), nil
}

// toAck flattens the venue's nested status reply into an OrderAck.
func toAck(resp orderResponse) domain.OrderAck {
	if resp.Status != "ok" {
		return domain.OrderAck{Reason: resp.Status}
	}

	statuses := resp.Response.Data.Statuses
	if len(statuses) == 0 {
		return domain.OrderAck{Accepted: true}
	}

	st := statuses[0]
	switch {
	case st.Error != "":
		return domain.OrderAck{Reason: st.Error}
	case st.Filled != nil:
		return domain.OrderAck{
			Accepted: true,
			OrderID:  strconv.FormatInt(st.Filled.Oid, 10),
		}
	case st.Resting != nil:
		return domain.OrderAck{
			Accepted: true,
			OrderID:  strconv.FormatInt(st.Resting.Oid, 10),
		}
	default:
		return domain.OrderAck{Accepted: true}
	}
}

// formatDecimal renders a float the way the venue parses it: plain decimal,
// no exponent, trailing zeros trimmed.
func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Compile-time interface check.
var _ domain.OrderPlacer = (*Exchange)(nil)
