package feed

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

// Fetcher retrieves a listing page from the remote catalog.
type Fetcher interface {
	Fetch(ctx context.Context, req query.Request) (*tmdb.MoviePage, error)
}

// PageCache serves listing pages by request identity (kind, parameters and
// page number). A page already resolved is served from the store; a page
// already being fetched is shared with the caller instead of re-issued.
// Failed fetches are not cached.
type PageCache struct {
	fetcher Fetcher
	store   Store
	group   singleflight.Group
	logger  *slog.Logger
}

// NewPageCache creates a PageCache. A nil store disables result caching
// while keeping in-flight deduplication.
func NewPageCache(fetcher Fetcher, store Store, logger *slog.Logger) *PageCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageCache{fetcher: fetcher, store: store, logger: logger}
}

// Page returns the page for req.
func (c *PageCache) Page(ctx context.Context, req query.Request) (*tmdb.MoviePage, error) {
	key := req.String()
	if page, ok := c.lookup(ctx, key); ok {
		return page, nil
	}

	// The fetch outlives any single waiter so the shared result still lands
	// in the store when the initiating caller gives up.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if page, ok := c.lookup(fetchCtx, key); ok {
			return page, nil
		}
		page, err := c.fetcher.Fetch(fetchCtx, req)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			if err := c.store.Set(fetchCtx, key, page); err != nil {
				c.logger.Warn("page cache write failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		}
		return page, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		page, ok := res.Val.(*tmdb.MoviePage)
		if !ok {
			return nil, fmt.Errorf("unexpected page type %T", res.Val)
		}
		if res.Shared {
			c.logger.Debug("joined in-flight page fetch", slog.String("key", key))
		}
		return page, nil
	}
}

func (c *PageCache) lookup(ctx context.Context, key string) (*tmdb.MoviePage, bool) {
	if c.store == nil {
		return nil, false
	}
	page, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("page cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return page, ok
}
