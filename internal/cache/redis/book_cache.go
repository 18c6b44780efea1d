package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// bookTTL bounds snapshot staleness. The sweep always refetches the live
// book; cached copies only serve status endpoints and debugging.
const bookTTL = 30 * time.Second

// BookCache implements domain.BookCache, storing the last seen order book
// snapshot per market as a JSON blob with a short TTL.
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookKey(market string) string { return "book:" + market }

// SetBook stores snap for its market, replacing any previous snapshot.
func (bc *BookCache) SetBook(ctx context.Context, snap domain.OrderbookSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s: %w", snap.Market, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(snap.Market), payload, bookTTL).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", snap.Market, err)
	}
	return nil
}

// GetBook returns the cached snapshot for market, or domain.ErrNotFound when
// none exists or it has expired.
func (bc *BookCache) GetBook(ctx context.Context, market string) (domain.OrderbookSnapshot, error) {
	payload, err := bc.rdb.Get(ctx, bookKey(market)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderbookSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: get book %s: %w", market, err)
	}

	var snap domain.OrderbookSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: unmarshal book %s: %w", market, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
