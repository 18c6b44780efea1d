// Package domain holds the core types shared across hedgewatch: decoded swap
// events, order-book snapshots, rebalance plans and results, and the
// interfaces implemented by the cache, store, and blob packages.
package domain

import (
	"encoding/json"
	"math/big"
)

// RawLog is a log record as delivered by an eth_subscribe "logs" notification.
// BlockNumber and LogIndex arrive as hex strings from most providers but some
// deliver native numbers, so both are kept raw until decode time.
type RawLog struct {
	Address         string          `json:"address"`
	Topics          []string        `json:"topics"`
	Data            string          `json:"data"`
	BlockNumber     json.RawMessage `json:"blockNumber"`
	TransactionHash string          `json:"transactionHash"`
	LogIndex        json.RawMessage `json:"logIndex"`
	Removed         bool            `json:"removed"`
}

// SwapEvent is one decoded Swap log from the watched pool. Instances are
// immutable after decoding; the store appends and evicts them but never
// mutates fields.
type SwapEvent struct {
	Pool        string   // checksummed pool address
	Sender      string   // checksummed sender from topics[1]
	ZeroToOne   bool     // true: asset0 -> asset1
	AmountIn    *big.Int // input amount, token smallest unit, >= 0
	Fee         *big.Int // fee, token smallest unit, >= 0
	AmountOut   *big.Int // output amount, token smallest unit, >= 0
	QuoteDelta  *big.Int // signed vault quote-asset delta, micro units
	TxHash      string
	BlockNumber uint64
	LogIndex    uint64
}

// swapEventJSON is the wire shape pushed to API and WebSocket clients. The
// big integers are serialized as decimal strings so browser clients never hit
// float53 truncation.
type swapEventJSON struct {
	Pool        string `json:"pool"`
	Sender      string `json:"sender"`
	ZeroToOne   bool   `json:"isZeroToOne"`
	AmountIn    string `json:"amountIn"`
	Fee         string `json:"fee"`
	AmountOut   string `json:"amountOut"`
	QuoteDelta  string `json:"quoteDelta"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	LogIndex    uint64 `json:"logIndex"`
}

// MarshalJSON implements json.Marshaler.
func (e SwapEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(swapEventJSON{
		Pool:        e.Pool,
		Sender:      e.Sender,
		ZeroToOne:   e.ZeroToOne,
		AmountIn:    bigString(e.AmountIn),
		Fee:         bigString(e.Fee),
		AmountOut:   bigString(e.AmountOut),
		QuoteDelta:  bigString(e.QuoteDelta),
		TxHash:      e.TxHash,
		BlockNumber: e.BlockNumber,
		LogIndex:    e.LogIndex,
	})
}

// UnmarshalJSON implements json.Unmarshaler for round-tripping archived
// events.
func (e *SwapEvent) UnmarshalJSON(data []byte) error {
	var w swapEventJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Pool = w.Pool
	e.Sender = w.Sender
	e.ZeroToOne = w.ZeroToOne
	e.AmountIn = parseBig(w.AmountIn)
	e.Fee = parseBig(w.Fee)
	e.AmountOut = parseBig(w.AmountOut)
	e.QuoteDelta = parseBig(w.QuoteDelta)
	e.TxHash = w.TxHash
	e.BlockNumber = w.BlockNumber
	e.LogIndex = w.LogIndex
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
