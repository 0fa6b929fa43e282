package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/redis/go-redis/v9"

	"github.com/vadimtrunov/CineScroll/internal/config"
	"github.com/vadimtrunov/CineScroll/internal/feed"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
)

// Lipgloss styles used across commands.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray

	styleSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true) // cyan bold
	styleRating   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("5")).
			MarginBottom(1)
)

// loadErrorMessage is the only text users see when the catalog fails.
const loadErrorMessage = "Error loading movies"

//nolint:staticcheck // printed to users verbatim
var errLoadMovies = errors.New(loadErrorMessage)

// loadFailure logs the upstream detail and returns the generic error.
func loadFailure(logger *slog.Logger, err error) error {
	logger.Warn("catalog request failed", slog.String("error", err.Error()))
	return errLoadMovies
}

// loadConfig loads and validates the configuration file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// catalog bundles the TMDb client with the shared listing page cache.
type catalog struct {
	client *tmdb.Client
	pages  *feed.PageCache
	close  func() error
}

func (c *catalog) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// initCatalog creates the TMDb client and the page cache. Pages are stored
// in Redis when configured, in memory otherwise.
func initCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*catalog, error) {
	client := tmdb.New(cfg.TMDbClient(), logger)
	c := &catalog{client: client}

	var store feed.Store
	if cfg.Redis != nil {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		store = feed.NewRedisStore(rdb, cfg.Feed.CacheTTL.Std())
		c.close = rdb.Close
		logger.Info("redis page cache initialized", slog.String("addr", cfg.Redis.Addr))
	} else {
		store = feed.NewMemoryStore(cfg.Feed.CacheTTL.Std())
	}

	c.pages = feed.NewPageCache(client, store, logger)
	logger.Debug("TMDb catalog initialized", slog.String("url", sanitizeURL(cfg.TMDb.BaseURL)))
	return c, nil
}

// setupFileLogger sends logs to path, or discards them when path is empty.
// Used by the full-screen browser, which owns the terminal.
func setupFileLogger(level, path string) (*slog.Logger, func(), error) {
	if path == "" {
		return config.SetupLoggerTo(level, io.Discard), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return config.SetupLoggerTo(level, f), func() { _ = f.Close() }, nil
}

// sanitizeURL strips credentials, query params, and fragment from a URL for safe logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return "<redacted>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
