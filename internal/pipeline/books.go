package pipeline

import (
	"context"
	"log/slog"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// CachedBookSource decorates a BookSource, mirroring every fetched snapshot
// into the book cache so status consumers see a recent mid without another
// exchange round trip. Cache writes are best-effort.
type CachedBookSource struct {
	src    domain.BookSource
	cache  domain.BookCache
	logger *slog.Logger
}

// NewCachedBookSource wraps src with write-through caching.
func NewCachedBookSource(src domain.BookSource, cache domain.BookCache, logger *slog.Logger) *CachedBookSource {
	return &CachedBookSource{
		src:    src,
		cache:  cache,
		logger: logger.With(slog.String("component", "book_cache")),
	}
}

// Book fetches a fresh snapshot and mirrors it into the cache.
func (c *CachedBookSource) Book(ctx context.Context, market string) (domain.OrderbookSnapshot, error) {
	snap, err := c.src.Book(ctx, market)
	if err != nil {
		return snap, err
	}
	if c.cache != nil {
		if cacheErr := c.cache.SetBook(ctx, snap); cacheErr != nil {
			c.logger.Warn("mirror book snapshot failed",
				slog.String("market", market),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return snap, nil
}

var _ domain.BookSource = (*CachedBookSource)(nil)
