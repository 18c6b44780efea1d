package domain

import (
	"context"
	"time"
)

// SwapStore persists decoded swap events. Implemented by store/postgres.
type SwapStore interface {
	InsertBatch(ctx context.Context, events []SwapEvent) error
	ListRecent(ctx context.Context, limit int, sinceBlock uint64) ([]SwapEvent, error)
}

// ExecutionStore persists rebalance execution records.
type ExecutionStore interface {
	Create(ctx context.Context, exec RebalanceExecution) error
	ListRecent(ctx context.Context, limit int) ([]RebalanceExecution, error)
}

// BookCache caches the latest order-book snapshot per market so the status
// endpoint can report a mid price without hitting the exchange.
type BookCache interface {
	SetBook(ctx context.Context, snap OrderbookSnapshot) error
	GetBook(ctx context.Context, market string) (OrderbookSnapshot, error)
}

// BlobWriter writes archive objects. Implemented by blob/s3.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// LockManager guards work that must run on at most one instance at a time.
// Hold acquires the named lock and keeps it renewed until the returned
// release function is called or ctx is cancelled. It returns ErrLockHeld
// when another holder owns the lock.
type LockManager interface {
	Hold(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter answers whether one more request for key is allowed inside the
// sliding window. Implemented by cache/redis.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BalanceOracle reads the watched vault's current inventory.
type BalanceOracle interface {
	Balances(ctx context.Context) (VaultBalances, error)
}

// BookSource returns a fresh order-book snapshot for a market.
type BookSource interface {
	Book(ctx context.Context, market string) (OrderbookSnapshot, error)
}

// OrderPlacer submits one immediate-or-cancel limit order and reports whether
// the venue accepted it.
type OrderPlacer interface {
	PlaceIOC(ctx context.Context, market string, buy bool, price, size float64) (OrderAck, error)
}

// OrderAck is the venue's response to a single order submission.
type OrderAck struct {
	Accepted bool
	OrderID  string
	Reason   string // venue-reported rejection reason when not accepted
}

// Clock abstracts monotonic time for the throttle; tests substitute a fake.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }
