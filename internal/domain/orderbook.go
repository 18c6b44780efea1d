package domain

import "time"

// PriceLevel is a single price+size entry in an order book. Prices are quote
// units per base unit, sizes are base units.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderbookSnapshot is a point-in-time view of both sides of a market's book,
// normalized from whatever level shape the exchange returned.
type OrderbookSnapshot struct {
	Market    string       `json:"market"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the top bid price, or 0 when the bid side is empty.
func (s OrderbookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the top ask price, or 0 when the ask side is empty.
func (s OrderbookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// MidPrice returns the average of best bid and best ask. It returns 0 when
// either side is empty; callers must treat that as "no price".
func (s OrderbookSnapshot) MidPrice() float64 {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return (bid + ask) / 2
}

// VaultBalances holds the current inventory of the watched vault, in human
// units (token amount divided by 10^decimals).
type VaultBalances struct {
	Base      float64   `json:"base"`
	Quote     float64   `json:"quote"`
	FetchedAt time.Time `json:"fetchedAt"`
}
