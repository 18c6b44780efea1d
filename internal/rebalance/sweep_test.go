package rebalance

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type placedOrder struct {
	Buy   bool
	Price float64
	Size  float64
}

// fakePlacer accepts every order unless reject returns true for it.
type fakePlacer struct {
	mu     sync.Mutex
	orders []placedOrder
	reject func(order placedOrder) bool
}

func (f *fakePlacer) PlaceIOC(_ context.Context, _ string, buy bool, price, size float64) (domain.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order := placedOrder{Buy: buy, Price: price, Size: size}
	f.orders = append(f.orders, order)
	if f.reject != nil && f.reject(order) {
		return domain.OrderAck{Reason: "rejected"}, nil
	}
	return domain.OrderAck{Accepted: true, OrderID: "1"}, nil
}

func (f *fakePlacer) placed() []placedOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]placedOrder, len(f.orders))
	copy(out, f.orders)
	return out
}

func buyPlan(notionalMicro int64) domain.RebalancePlan {
	return domain.RebalancePlan{ID: "p1", Side: domain.TradeSideBuyBase, NotionalMicro: notionalMicro}
}

func TestSweepWalksLevelsAndQuantizesDown(t *testing.T) {
	placer := &fakePlacer{}
	sweeper := NewSweeper(placer, "PURR/USDC", 10, 2, discardLogger())

	book := domain.OrderbookSnapshot{
		Market: "PURR/USDC",
		Asks: []domain.PriceLevel{
			{Price: 5, Size: 3},
			{Price: 6, Size: 10},
		},
	}

	result := sweeper.Execute(context.Background(), buyPlan(50_000_000), book, 0)

	require.True(t, result.Success)
	require.Len(t, result.Fills, 2)

	// Level one is fully consumed: 3 units at 5.
	assert.Equal(t, 5.0, result.Fills[0].Price)
	assert.Equal(t, 3.0, result.Fills[0].Size)

	// Level two takes 35/6 = 5.8333 rounded down to 5.83.
	assert.Equal(t, 6.0, result.Fills[1].Price)
	assert.Equal(t, 5.83, result.Fills[1].Size)

	assert.Equal(t, int64(49_980_000), result.FilledMicro)
	assert.Equal(t, int64(20_000), result.RemainingMicro)
	assert.LessOrEqual(t, result.FilledMicro, int64(50_000_000))

	orders := placer.placed()
	require.Len(t, orders, 2)
	assert.True(t, orders[0].Buy)
}

func TestSweepEmptyBook(t *testing.T) {
	placer := &fakePlacer{}
	sweeper := NewSweeper(placer, "PURR/USDC", 10, 2, discardLogger())

	result := sweeper.Execute(context.Background(), buyPlan(50_000_000), domain.OrderbookSnapshot{}, 0)

	assert.False(t, result.Success)
	assert.Equal(t, domain.ReasonEmptyBook, result.Reason)
	assert.Equal(t, int64(50_000_000), result.RemainingMicro)
	assert.Empty(t, placer.placed())
}

func TestSweepSellCappedByBaseBalance(t *testing.T) {
	placer := &fakePlacer{}
	sweeper := NewSweeper(placer, "PURR/USDC", 10, 2, discardLogger())

	plan := domain.RebalancePlan{ID: "p2", Side: domain.TradeSideSellBase, NotionalMicro: 100_000_000}
	book := domain.OrderbookSnapshot{
		Bids: []domain.PriceLevel{
			{Price: 10, Size: 50},
			{Price: 9, Size: 50},
		},
	}

	// Only 4 base available even though the plan wants 10 worth.
	result := sweeper.Execute(context.Background(), plan, book, 4)

	require.True(t, result.Success)
	require.Len(t, result.Fills, 1)
	assert.Equal(t, 4.0, result.Fills[0].Size)
	assert.Equal(t, int64(40_000_000), result.FilledMicro)

	orders := placer.placed()
	require.Len(t, orders, 1)
	assert.False(t, orders[0].Buy)
}

func TestSweepContinuesPastRejection(t *testing.T) {
	placer := &fakePlacer{
		reject: func(o placedOrder) bool { return o.Price == 5 },
	}
	sweeper := NewSweeper(placer, "PURR/USDC", 10, 2, discardLogger())

	book := domain.OrderbookSnapshot{
		Asks: []domain.PriceLevel{
			{Price: 5, Size: 3},
			{Price: 6, Size: 10},
		},
	}

	result := sweeper.Execute(context.Background(), buyPlan(30_000_000), book, 0)

	// The rejected level contributes nothing; the next level still fills.
	require.True(t, result.Success)
	require.Len(t, result.Fills, 1)
	assert.Equal(t, 6.0, result.Fills[0].Price)
	assert.Len(t, placer.placed(), 2)
}

func TestSweepSkipsDustLevels(t *testing.T) {
	placer := &fakePlacer{}
	sweeper := NewSweeper(placer, "PURR/USDC", 10, 0, discardLogger())

	book := domain.OrderbookSnapshot{
		Asks: []domain.PriceLevel{
			{Price: 100, Size: 0.4}, // rounds to zero at szDecimals=0
			{Price: 101, Size: 5},
		},
	}

	result := sweeper.Execute(context.Background(), buyPlan(300_000_000), book, 0)

	require.True(t, result.Success)
	require.Len(t, result.Fills, 1)
	assert.Equal(t, 101.0, result.Fills[0].Price)
}

func TestSweepTruncatesToMaxLevels(t *testing.T) {
	placer := &fakePlacer{}
	sweeper := NewSweeper(placer, "PURR/USDC", 1, 2, discardLogger())

	book := domain.OrderbookSnapshot{
		Asks: []domain.PriceLevel{
			{Price: 5, Size: 1},
			{Price: 6, Size: 100},
		},
	}

	result := sweeper.Execute(context.Background(), buyPlan(50_000_000), book, 0)

	require.Len(t, result.Fills, 1)
	assert.Equal(t, 5.0, result.Fills[0].Price)
	assert.Positive(t, result.RemainingMicro)
}

func TestRoundDown(t *testing.T) {
	assert.Equal(t, 5.83, roundDown(5.8333, 2))
	assert.Equal(t, 5.0, roundDown(5.9999, 0))
	assert.Equal(t, 0.0, roundDown(0.4, 0))
}
