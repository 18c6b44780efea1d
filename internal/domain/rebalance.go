package domain

import "time"

// TradeSide is the direction of a corrective trade, expressed against the
// base asset.
type TradeSide string

const (
	TradeSideBuyBase  TradeSide = "buy_base"
	TradeSideSellBase TradeSide = "sell_base"
)

// IsBuy reports whether the side purchases base asset with quote.
func (s TradeSide) IsBuy() bool { return s == TradeSideBuyBase }

// Sweep failure reasons reported in SweepResult.Reason and pushed to clients
// in rebalance_result messages.
const (
	ReasonEmptyBook        = "empty_book"
	ReasonBelowMinNotional = "below_min_notional"
	ReasonWithinBand       = "within_band"
	ReasonCooldown         = "cooldown"
	ReasonOracleError      = "oracle_error"
	ReasonNoFill           = "no_fill"
	ReasonNoBaseInventory  = "no_base_inventory"
)

// RebalancePlan is one corrective trade decision. Plans are created fresh per
// qualifying swap event and never persisted beyond the execution they trigger.
type RebalancePlan struct {
	ID            string    `json:"id"`
	Side          TradeSide `json:"side"`
	NotionalMicro int64     `json:"notionalMicro"` // quote smallest unit (1e-6)
	BaseQty       float64   `json:"baseQty"`       // base units at the reference mid
	MidPrice      float64   `json:"midPrice"`
	Ratio         float64   `json:"ratio"` // quote / (base * mid) at decision time
	CreatedAt     time.Time `json:"createdAt"`
}

// Notional returns the plan's target notional in human quote units.
func (p RebalancePlan) Notional() float64 {
	return float64(p.NotionalMicro) / 1e6
}

// Fill is one executed IOC order inside a sweep.
type Fill struct {
	Price float64   `json:"price"`
	Size  float64   `json:"size"`
	Side  TradeSide `json:"side"`
}

// SweepResult is the outcome of one order-book sweep. Immutable once
// returned; Success is true only when at least one fill landed.
type SweepResult struct {
	Fills          []Fill `json:"fills"`
	FilledMicro    int64  `json:"filledMicro"`    // quote smallest unit
	RemainingMicro int64  `json:"remainingMicro"` // unfilled quote smallest unit
	Success        bool   `json:"success"`
	Reason         string `json:"reason,omitempty"`
}

// RebalanceExecution is the durable record of one decision-and-sweep cycle,
// persisted when a Postgres store is configured.
type RebalanceExecution struct {
	ID             string
	PlanID         string
	TriggerTxHash  string
	Side           TradeSide
	NotionalMicro  int64
	FilledMicro    int64
	RemainingMicro int64
	MidPrice       float64
	Ratio          float64
	FillCount      int
	Success        bool
	Reason         string
	StartedAt      time.Time
	CompletedAt    time.Time
}
