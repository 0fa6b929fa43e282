// Package feed implements infinite-scroll listing state on top of a
// deduplicating page cache.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

var (
	// ErrNoMorePages is returned when the last fetched page was the final one.
	ErrNoMorePages = errors.New("no more pages")
	// ErrFetchInProgress is returned when a page fetch is already running.
	ErrFetchInProgress = errors.New("page fetch already in progress")
	// ErrStale is returned when the key changed while a fetch was in flight;
	// the response was discarded.
	ErrStale = errors.New("response discarded: key changed")
	// ErrBlocked is returned by FetchNextPage after a failed fetch until
	// Retry succeeds or the key changes.
	ErrBlocked = errors.New("pagination blocked by previous error")
)

// Status is the load state of a Feed.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Loader resolves one listing page. *PageCache implements it.
type Loader interface {
	Page(ctx context.Context, req query.Request) (*tmdb.MoviePage, error)
}

// Snapshot is a point-in-time view of a Feed for presentation.
type Snapshot struct {
	Key              query.Key
	Movies           []tmdb.Movie
	Pages            int
	TotalPages       int
	HasNextPage      bool
	FetchingNextPage bool
	Status           Status
	Err              error
}

// Feed accumulates the pages of one result set in fetch order.
type Feed struct {
	mu       sync.Mutex
	loader   Loader
	logger   *slog.Logger
	key      query.Key
	gen      uint64
	pages    []tmdb.MoviePage
	status   Status
	err      error
	inflight int // page number being fetched, 0 when idle
}

// New creates a Feed for key. Nothing is fetched until Load.
func New(loader Loader, key query.Key, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{loader: loader, key: key, logger: logger}
}

// Key returns the current key.
func (f *Feed) Key() query.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

// SetKey switches to key. A different key discards accumulated pages and
// any error; the next Load starts again at page 1. It reports whether the
// key changed.
func (f *Feed) SetKey(key query.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.key.Equal(key) {
		return false
	}
	f.key = key
	f.gen++
	f.pages = nil
	f.status = StatusIdle
	f.err = nil
	f.inflight = 0
	return true
}

// Load fetches the first page if none has been fetched yet.
func (f *Feed) Load(ctx context.Context) error {
	f.mu.Lock()
	if len(f.pages) > 0 {
		f.mu.Unlock()
		return nil
	}
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrBlocked, err)
	}
	return f.fetchLocked(ctx, 1)
}

// FetchNextPage fetches the page after the last one. It is a no-op error
// (ErrNoMorePages) once the last page reached its declared total.
func (f *Feed) FetchNextPage(ctx context.Context) error {
	f.mu.Lock()
	if len(f.pages) == 0 {
		f.mu.Unlock()
		return f.Load(ctx)
	}
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrBlocked, err)
	}
	if !f.hasNextLocked() {
		f.mu.Unlock()
		return ErrNoMorePages
	}
	return f.fetchLocked(ctx, len(f.pages)+1)
}

// Retry clears a previous error and fetches the page that failed.
func (f *Feed) Retry(ctx context.Context) error {
	f.mu.Lock()
	if f.err == nil {
		f.mu.Unlock()
		return nil
	}
	f.err = nil
	if len(f.pages) > 0 {
		f.status = StatusSuccess
	}
	return f.fetchLocked(ctx, len(f.pages)+1)
}

// fetchLocked must be called with f.mu held; it releases the lock while
// the page is loading.
func (f *Feed) fetchLocked(ctx context.Context, page int) error {
	if f.inflight != 0 {
		f.mu.Unlock()
		return ErrFetchInProgress
	}
	f.inflight = page
	gen := f.gen
	req := f.key.Request(page)
	if page == 1 {
		f.status = StatusLoading
	}
	f.mu.Unlock()

	result, err := f.loader.Page(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		f.logger.Debug("discarding stale page",
			slog.String("request", req.String()),
		)
		return ErrStale
	}
	f.inflight = 0

	if err != nil {
		f.status = StatusError
		f.err = err
		f.logger.Warn("page fetch failed",
			slog.String("request", req.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	f.pages = append(f.pages, *result)
	f.status = StatusSuccess
	return nil
}

// HasNextPage reports whether the accumulated page count is below the
// total_pages of the most recent page.
func (f *Feed) HasNextPage() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasNextLocked()
}

func (f *Feed) hasNextLocked() bool {
	if len(f.pages) == 0 {
		return false
	}
	return len(f.pages) < f.pages[len(f.pages)-1].TotalPages
}

// Snapshot returns the current state with pages flattened in fetch order.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, p := range f.pages {
		n += len(p.Results)
	}
	movies := make([]tmdb.Movie, 0, n)
	for _, p := range f.pages {
		movies = append(movies, p.Results...)
	}

	s := Snapshot{
		Key:              f.key,
		Movies:           movies,
		Pages:            len(f.pages),
		HasNextPage:      f.hasNextLocked(),
		FetchingNextPage: f.inflight > 1,
		Status:           f.status,
		Err:              f.err,
	}
	if len(f.pages) > 0 {
		s.TotalPages = f.pages[len(f.pages)-1].TotalPages
	}
	return s
}
