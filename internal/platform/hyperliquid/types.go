// Package hyperliquid is the REST client for the spot exchange where the
// vault hedges: order book reads via the info endpoint and IOC order
// submission via the exchange endpoint.
package hyperliquid

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// rawLevel tolerates both level encodings the venue has shipped: an object
// {"px": "5.0", "sz": "3.0", "n": 2} and a positional pair [px, sz]. Numbers
// arrive as JSON strings or native numbers depending on the gateway version.
type rawLevel struct {
	Px float64
	Sz float64
}

func (l *rawLevel) UnmarshalJSON(data []byte) error {
	var obj struct {
		Px json.RawMessage `json:"px"`
		Sz json.RawMessage `json:"sz"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Px != nil {
		px, err := looseFloat(obj.Px)
		if err != nil {
			return fmt.Errorf("hyperliquid: level px: %w", err)
		}
		sz, err := looseFloat(obj.Sz)
		if err != nil {
			return fmt.Errorf("hyperliquid: level sz: %w", err)
		}
		l.Px, l.Sz = px, sz
		return nil
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("hyperliquid: level is neither object nor pair: %s", string(data))
	}
	if len(pair) < 2 {
		return fmt.Errorf("hyperliquid: level pair has %d entries", len(pair))
	}
	px, err := looseFloat(pair[0])
	if err != nil {
		return fmt.Errorf("hyperliquid: level px: %w", err)
	}
	sz, err := looseFloat(pair[1])
	if err != nil {
		return fmt.Errorf("hyperliquid: level sz: %w", err)
	}
	l.Px, l.Sz = px, sz
	return nil
}

// looseFloat parses a JSON value that is either a number or a numeric string.
func looseFloat(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("empty value")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	return f, nil
}

// l2BookResponse is the shape of the info endpoint's l2Book reply:
// levels[0] holds bids (best first), levels[1] holds asks (best first).
type l2BookResponse struct {
	Coin   string       `json:"coin"`
	Levels [][]rawLevel `json:"levels"`
}

// spotMetaResponse carries per-market metadata; SzDecimals drives order size
// quantization.
type spotMetaResponse struct {
	Universe []spotMarketMeta `json:"universe"`
}

type spotMarketMeta struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
}

// orderRequest is the exchange endpoint payload for a single IOC limit order.
type orderRequest struct {
	Action    orderAction `json:"action"`
	Nonce     int64       `json:"nonce"`
	Signature signature   `json:"signature"`
}

type orderAction struct {
	Type   string      `json:"type"`
	Orders []wireOrder `json:"orders"`
}

type wireOrder struct {
	Asset      string    `json:"a"`
	IsBuy      bool      `json:"b"`
	LimitPx    string    `json:"p"`
	Size       string    `json:"s"`
	ReduceOnly bool      `json:"r"`
	OrderType  orderType `json:"t"`
}

type orderType struct {
	Limit limitType `json:"limit"`
}

type limitType struct {
	// Tif "Ioc" fills what it can immediately and cancels the rest.
	Tif string `json:"tif"`
}

type signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

// orderResponse is the exchange endpoint reply.
type orderResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

type orderStatus struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled"`
	Error string `json:"error"`
}
