// Package rebalance decides and executes corrective trades when the vault's
// quote/base value ratio drifts outside the configured band.
package rebalance

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// Notifier receives out-of-band alerts about executed trades and failures.
type Notifier interface {
	RebalanceExecuted(ctx context.Context, exec domain.RebalanceExecution)
	RebalanceError(ctx context.Context, reason string, err error)
}

// Config carries the decision parameters.
type Config struct {
	// Band is the tolerated deviation of the quote/base value ratio from 1
	// below which no trade is triggered.
	Band float64

	// Cooldown is the minimum gap between the starts of two executions.
	Cooldown time.Duration

	// MinNotionalMicro floors trades not worth their fees; MaxNotionalMicro
	// caps single-event market impact. Both in micro quote units.
	MinNotionalMicro int64
	MaxNotionalMicro int64
}

// Engine is the per-swap decision path: read vault inventory, read the book
// mid, trade half the imbalance when outside the band. It never returns an
// error to the ingestion pipeline; every failure degrades to a skipped trade
// plus a broadcast result.
type Engine struct {
	cfg     Config
	oracle  domain.BalanceOracle
	books   domain.BookSource
	sweeper *Sweeper
	market  string

	bus       domain.SignalBus
	execStore domain.ExecutionStore
	notifier  Notifier
	clock     domain.Clock
	logger    *slog.Logger

	// mu serializes the whole plan-and-submit section; lastStart is only
	// touched while holding it.
	mu        sync.Mutex
	lastStart time.Time
}

// EngineDeps bundles the engine's collaborators. ExecStore and Notifier are
// optional; Clock defaults to the wall clock.
type EngineDeps struct {
	Oracle    domain.BalanceOracle
	Books     domain.BookSource
	Sweeper   *Sweeper
	Market    string
	Bus       domain.SignalBus
	ExecStore domain.ExecutionStore
	Notifier  Notifier
	Clock     domain.Clock
	Logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg Config, deps EngineDeps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = domain.ClockFunc(time.Now)
	}
	return &Engine{
		cfg:       cfg,
		oracle:    deps.Oracle,
		books:     deps.Books,
		sweeper:   deps.Sweeper,
		market:    deps.Market,
		bus:       deps.Bus,
		execStore: deps.ExecStore,
		notifier:  deps.Notifier,
		clock:     clock,
		logger:    deps.Logger.With(slog.String("component", "rebalance")),
	}
}

// OnSwap evaluates one decoded swap. Called fire-and-forget from ingestion;
// it must never panic or block the caller's goroutine for long.
func (e *Engine) OnSwap(ctx context.Context, ev domain.SwapEvent) {
	balances, err := e.oracle.Balances(ctx)
	if err != nil {
		e.logger.Warn("vault balance fetch failed",
			slog.String("tx_hash", ev.TxHash),
			slog.String("error", err.Error()),
		)
		e.reportSkip(ctx, ev, domain.ReasonOracleError, 0, 0)
		if e.notifier != nil {
			e.notifier.RebalanceError(ctx, domain.ReasonOracleError, err)
		}
		return
	}

	book, err := e.books.Book(ctx, e.market)
	if err != nil {
		e.logger.Warn("book fetch failed",
			slog.String("market", e.market),
			slog.String("error", err.Error()),
		)
		e.reportSkip(ctx, ev, domain.ReasonOracleError, 0, 0)
		return
	}

	mid := book.MidPrice()
	if mid <= 0 {
		e.reportSkip(ctx, ev, domain.ReasonEmptyBook, mid, 0)
		return
	}

	valueOfBase := balances.Base * mid
	if valueOfBase <= 0 {
		// Vault holds no base; the ratio is undefined, not balanced.
		e.reportSkip(ctx, ev, domain.ReasonNoBaseInventory, mid, 0)
		return
	}

	ratio := balances.Quote / valueOfBase
	if math.Abs(ratio-1) <= e.cfg.Band {
		e.logger.Debug("inventory within band",
			slog.Float64("ratio", ratio),
			slog.Float64("band", e.cfg.Band),
		)
		return
	}

	// Everything from the cooldown check through order submission runs under
	// one lock: a concurrent trigger waits here, then sees the fresh
	// lastStart and skips.
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if !e.lastStart.IsZero() && now.Sub(e.lastStart) < e.cfg.Cooldown {
		e.logger.Debug("cooldown active, skipping trigger",
			slog.String("tx_hash", ev.TxHash),
			slog.Duration("since_last", now.Sub(e.lastStart)),
		)
		e.reportSkip(ctx, ev, domain.ReasonCooldown, mid, ratio)
		return
	}

	plan, ok := e.plan(ev, balances, mid, ratio)
	if !ok {
		e.reportSkip(ctx, ev, domain.ReasonBelowMinNotional, mid, ratio)
		return
	}

	e.lastStart = now
	e.publish(ctx, domain.MsgTypeRebalanceIntent, plan)
	e.logger.Info("rebalance planned",
		slog.String("plan_id", plan.ID),
		slog.String("side", string(plan.Side)),
		slog.Int64("notional_micro", plan.NotionalMicro),
		slog.Float64("ratio", ratio),
		slog.Float64("mid", mid),
	)

	result := e.sweeper.Execute(ctx, plan, book, balances.Base)

	exec := domain.RebalanceExecution{
		ID:             uuid.NewString(),
		PlanID:         plan.ID,
		TriggerTxHash:  ev.TxHash,
		Side:           plan.Side,
		NotionalMicro:  plan.NotionalMicro,
		FilledMicro:    result.FilledMicro,
		RemainingMicro: result.RemainingMicro,
		MidPrice:       mid,
		Ratio:          ratio,
		FillCount:      len(result.Fills),
		Success:        result.Success,
		Reason:         result.Reason,
		StartedAt:      now,
		CompletedAt:    e.clock.Now(),
	}

	e.publish(ctx, domain.MsgTypeRebalanceResult, exec)

	if e.execStore != nil {
		if err := e.execStore.Create(ctx, exec); err != nil {
			e.logger.Error("persist execution failed",
				slog.String("execution_id", exec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if e.notifier != nil && result.Success {
		e.notifier.RebalanceExecuted(ctx, exec)
	}

	e.logger.Info("rebalance executed",
		slog.String("plan_id", plan.ID),
		slog.Bool("success", result.Success),
		slog.Int("fills", len(result.Fills)),
		slog.Int64("filled_micro", result.FilledMicro),
		slog.Int64("remaining_micro", result.RemainingMicro),
		slog.String("reason", result.Reason),
	)
}

// plan sizes the corrective trade: half the imbalance, floored and capped.
// Positive imbalance (quote overweight) buys base; negative sells base.
func (e *Engine) plan(ev domain.SwapEvent, balances domain.VaultBalances, mid, ratio float64) (domain.RebalancePlan, bool) {
	imbalance := balances.Quote - balances.Base*mid
	notional := math.Abs(imbalance) / 2

	notionalMicro := int64(math.Round(notional * 1e6))
	if notionalMicro < e.cfg.MinNotionalMicro {
		return domain.RebalancePlan{}, false
	}
	if e.cfg.MaxNotionalMicro > 0 && notionalMicro > e.cfg.MaxNotionalMicro {
		notionalMicro = e.cfg.MaxNotionalMicro
	}

	side := domain.TradeSideBuyBase
	if imbalance < 0 {
		side = domain.TradeSideSellBase
	}

	return domain.RebalancePlan{
		ID:            uuid.NewString(),
		Side:          side,
		NotionalMicro: notionalMicro,
		BaseQty:       float64(notionalMicro) / 1e6 / mid,
		MidPrice:      mid,
		Ratio:         ratio,
		CreatedAt:     e.clock.Now(),
	}, true
}

// reportSkip broadcasts an ok:false result so subscribers can observe why no
// trade happened.
func (e *Engine) reportSkip(ctx context.Context, ev domain.SwapEvent, reason string, mid, ratio float64) {
	e.publish(ctx, domain.MsgTypeRebalanceResult, domain.RebalanceExecution{
		ID:            uuid.NewString(),
		TriggerTxHash: ev.TxHash,
		MidPrice:      mid,
		Ratio:         ratio,
		Success:       false,
		Reason:        reason,
		StartedAt:     e.clock.Now(),
		CompletedAt:   e.clock.Now(),
	})
}

// publish sends an envelope on the rebalance channel. Bus failures are
// logged and swallowed: observability must never break the pipeline.
func (e *Engine) publish(ctx context.Context, msgType string, data any) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.Envelope{Type: msgType, Data: data})
	if err != nil {
		e.logger.Error("marshal broadcast failed", slog.String("type", msgType), slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, domain.ChannelRebalance, payload); err != nil {
		e.logger.Warn("broadcast failed", slog.String("type", msgType), slog.String("error", err.Error()))
	}
}
