package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vadimtrunov/CineScroll/internal/cache"
	"github.com/vadimtrunov/CineScroll/internal/httpclient"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	defaultCacheTTL = 15 * time.Minute
)

// ErrNotFound is returned when TMDb answers 404.
var ErrNotFound = errors.New("tmdb: not found")

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	HTTP    httpclient.Config
	// CacheTTL bounds how long detail lookups (movie, credits, similar,
	// reviews, genres) are memoized. Listing pages are cached by the feed.
	CacheTTL time.Duration
}

// Client is a TMDb API v3 client.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	cache   *cache.TTL[any]
	logger  *slog.Logger
}

// New creates a new TMDb client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTP == (httpclient.Config{}) {
		cfg.HTTP = httpclient.DefaultConfig()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    httpclient.New(cfg.HTTP, logger),
		cache:   cache.New[any](cfg.CacheTTL),
		logger:  logger,
	}
}

// NewForTest creates a TMDb client with a custom base URL for testing.
// Exported because it is used by cross-package tests (e.g. internal/api).
func NewForTest(baseURL string, logger *slog.Logger) *Client {
	return New(Config{APIKey: "test-key", BaseURL: baseURL}, logger)
}

// Fetch retrieves one listing page for a resolved request.
func (c *Client) Fetch(ctx context.Context, req query.Request) (*MoviePage, error) {
	var page MoviePage
	if err := c.get(ctx, req.Path(), req.Values(), &page); err != nil {
		return nil, fmt.Errorf("fetch %s page %d: %w", req.Kind, req.Page, err)
	}
	c.logger.Debug("fetched listing page",
		slog.String("kind", req.Kind.String()),
		slog.Int("page", page.Page),
		slog.Int("total_pages", page.TotalPages),
		slog.Int("results", len(page.Results)),
	)
	return &page, nil
}

// Popular returns a page of the popularity listing.
func (c *Client) Popular(ctx context.Context, page int) (*MoviePage, error) {
	return c.Fetch(ctx, query.Build("", query.FilterState{}, page))
}

// Search returns a page of free-text search results.
func (c *Client) Search(ctx context.Context, text string, page int) (*MoviePage, error) {
	return c.Fetch(ctx, query.Request{Kind: query.KindSearch, Query: text, Page: max(page, 1)})
}

// Discover returns a page of movies matching filters.
func (c *Client) Discover(ctx context.Context, filters query.FilterState, page int) (*MoviePage, error) {
	return c.Fetch(ctx, query.Request{Kind: query.KindDiscover, Filters: filters.Normalized(), Page: max(page, 1)})
}

// Movie retrieves full details for a movie by TMDb ID.
func (c *Client) Movie(ctx context.Context, id int) (*MovieDetails, error) {
	return cachedGet[MovieDetails](ctx, c, fmt.Sprintf("movie:%d", id), fmt.Sprintf("/movie/%d", id), nil)
}

// Credits retrieves cast and crew for a movie.
func (c *Client) Credits(ctx context.Context, id int) (*Credits, error) {
	return cachedGet[Credits](ctx, c, fmt.Sprintf("credits:%d", id), fmt.Sprintf("/movie/%d/credits", id), nil)
}

// Similar returns movies similar to the given movie.
func (c *Client) Similar(ctx context.Context, id int) (*MoviePage, error) {
	return cachedGet[MoviePage](ctx, c, fmt.Sprintf("similar:%d", id), fmt.Sprintf("/movie/%d/similar", id), nil)
}

// Reviews returns a page of user reviews for a movie.
func (c *Client) Reviews(ctx context.Context, id, page int) (*ReviewPage, error) {
	page = max(page, 1)
	params := url.Values{"page": {strconv.Itoa(page)}}
	return cachedGet[ReviewPage](ctx, c,
		fmt.Sprintf("reviews:%d:%d", id, page), fmt.Sprintf("/movie/%d/reviews", id), params)
}

// Genres returns TMDb's current movie genre list.
func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	resp, err := cachedGet[genreListResponse](ctx, c, "genres", "/genre/movie/list", nil)
	if err != nil {
		return nil, err
	}
	return resp.Genres, nil
}

func cachedGet[T any](ctx context.Context, c *Client, key, path string, params url.Values) (*T, error) {
	if cached, ok := c.cache.Get(key); ok {
		if v, ok := cached.(*T); ok {
			return v, nil
		}
	}

	var v T
	if err := c.get(ctx, path, params, &v); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	c.cache.Set(key, &v)
	return &v, nil
}

// get performs an authenticated GET request to the TMDb API and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	q := u.Query()
	q.Set("api_key", c.apiKey)
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request: %w", httpclient.RedactError(err))
	}
	defer resp.Body.Close()

	if err := httpclient.CheckStatus(resp); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("tmdb API error: %w", err)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
