package rebalance

import (
	"context"
	"log/slog"
	"math"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// Sweeper walks order-book depth and submits one IOC limit order per level
// until a plan's notional is consumed, the levels run out, or the base
// balance is exhausted. Greedy and price-priority ordered; it corrects
// inventory, it does not chase best execution.
type Sweeper struct {
	placer     domain.OrderPlacer
	market     string
	maxLevels  int
	szDecimals int
	logger     *slog.Logger
}

// NewSweeper creates a Sweeper for one market. szDecimals is the venue's
// size quantization; sizes are always rounded down to it.
func NewSweeper(placer domain.OrderPlacer, market string, maxLevels, szDecimals int, logger *slog.Logger) *Sweeper {
	if maxLevels <= 0 {
		maxLevels = 10
	}
	return &Sweeper{
		placer:     placer,
		market:     market,
		maxLevels:  maxLevels,
		szDecimals: szDecimals,
		logger:     logger.With(slog.String("component", "sweeper")),
	}
}

// Execute fills plan against book. availableBase caps sell sizes so the vault
// never sells base it does not hold. The filled total never exceeds the
// requested notional: sizes are rounded down before submission.
func (s *Sweeper) Execute(ctx context.Context, plan domain.RebalancePlan, book domain.OrderbookSnapshot, availableBase float64) domain.SweepResult {
	levels := book.Asks
	if !plan.Side.IsBuy() {
		levels = book.Bids
	}
	if len(levels) > s.maxLevels {
		levels = levels[:s.maxLevels]
	}

	if len(levels) == 0 {
		return domain.SweepResult{
			RemainingMicro: plan.NotionalMicro,
			Reason:         domain.ReasonEmptyBook,
		}
	}

	var (
		remaining  = float64(plan.NotionalMicro) / 1e6
		baseBudget = availableBase
		filled     float64
		fills      []domain.Fill
	)

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		if lvl.Price <= 0 {
			continue
		}

		size := math.Min(lvl.Size, remaining/lvl.Price)
		if !plan.Side.IsBuy() {
			size = math.Min(size, baseBudget)
		}
		size = roundDown(size, s.szDecimals)
		if size <= 0 {
			continue
		}

		ack, err := s.placer.PlaceIOC(ctx, s.market, plan.Side.IsBuy(), lvl.Price, size)
		if err != nil {
			s.logger.Warn("order submission failed, continuing sweep",
				slog.String("plan_id", plan.ID),
				slog.Float64("price", lvl.Price),
				slog.Float64("size", size),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ack.Accepted {
			s.logger.Warn("order rejected, continuing sweep",
				slog.String("plan_id", plan.ID),
				slog.Float64("price", lvl.Price),
				slog.Float64("size", size),
				slog.String("reason", ack.Reason),
			)
			continue
		}

		traded := size * lvl.Price
		remaining -= traded
		filled += traded
		if !plan.Side.IsBuy() {
			baseBudget -= size
		}

		fills = append(fills, domain.Fill{
			Price: lvl.Price,
			Size:  size,
			Side:  plan.Side,
		})
	}

	result := domain.SweepResult{
		Fills:       fills,
		FilledMicro: int64(math.Round(filled * 1e6)),
	}
	if result.FilledMicro > plan.NotionalMicro {
		result.FilledMicro = plan.NotionalMicro
	}
	result.RemainingMicro = plan.NotionalMicro - result.FilledMicro

	if len(fills) == 0 {
		result.Reason = domain.ReasonNoFill
		return result
	}
	result.Success = true
	return result
}

// roundDown truncates x to decimals places. Never rounds up: rounding up
// could exceed the authorized notional or the level's size.
func roundDown(x float64, decimals int) float64 {
	m := math.Pow10(decimals)
	return math.Floor(x*m) / m
}
