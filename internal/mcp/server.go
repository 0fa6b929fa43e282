package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

// PageSource resolves listing pages, typically a feed.PageCache.
type PageSource interface {
	Page(ctx context.Context, req query.Request) (*tmdb.MoviePage, error)
}

// Catalog provides detail lookups.
type Catalog interface {
	Movie(ctx context.Context, id int) (*tmdb.MovieDetails, error)
	Credits(ctx context.Context, id int) (*tmdb.Credits, error)
	Similar(ctx context.Context, id int) (*tmdb.MoviePage, error)
	Reviews(ctx context.Context, id, page int) (*tmdb.ReviewPage, error)
	Genres(ctx context.Context) ([]tmdb.Genre, error)
}

// Deps holds backend dependencies for MCP tool handlers.
type Deps struct {
	Pages     PageSource
	Catalog   Catalog
	ImageSize tmdb.ImageSize
	Version   string
}

// Server wraps an MCP SDK server with CineScroll tool handlers.
type Server struct {
	server *mcpsdk.Server
	deps   Deps
	logger *slog.Logger
}

// NewServer creates an MCP server with all catalog tools registered.
func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	if deps.ImageSize == "" {
		deps.ImageSize = tmdb.DefaultImageSize
	}

	s := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "cinescroll",
			Version: deps.Version,
		},
		&mcpsdk.ServerOptions{Logger: logger},
	)

	srv := &Server{server: s, deps: deps, logger: logger}
	srv.registerTools()
	return srv
}

// ServeStdio runs the MCP server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// MCPServer returns the underlying MCP SDK server (for testing).
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

func (s *Server) registerTools() {
	s.server.AddTool(browseMoviesTool(), s.handleBrowseMovies)
	s.server.AddTool(getMovieDetailsTool(), s.handleGetMovieDetails)
	s.server.AddTool(getMovieCreditsTool(), s.handleGetMovieCredits)
	s.server.AddTool(getSimilarMoviesTool(), s.handleGetSimilarMovies)
	s.server.AddTool(getMovieReviewsTool(), s.handleGetMovieReviews)
	s.server.AddTool(listGenresTool(), s.handleListGenres)
}

func browseMoviesTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name: "browse_movies",
		Description: "Browse the movie catalog one page at a time. A non-empty search runs a title search and " +
			"ignores filters; otherwise genre, year and rating filters select movies; with neither, popular movies are listed.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search": map[string]any{
					"type":        "string",
					"description": "Title text to search for",
				},
				"genres": map[string]any{
					"type":        "array",
					"description": "Genre ids (e.g. 28) or names (e.g. \"Action\"); movies must match all of them",
					"items":       map[string]any{"type": []any{"integer", "string"}},
				},
				"year": map[string]any{
					"type":        "integer",
					"description": "Release year",
				},
				"rating_min": map[string]any{
					"type":        "number",
					"description": "Minimum vote average, 0-10",
				},
				"rating_max": map[string]any{
					"type":        "number",
					"description": "Maximum vote average, 0-10",
				},
				"page": map[string]any{
					"type":        "integer",
					"description": "1-based page number (default 1)",
				},
			},
		},
	}
}

func getMovieDetailsTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "get_movie_details",
		Description: "Get detailed information about a movie by its TMDb ID: runtime, genres, production companies, budget, revenue and status.",
		InputSchema: tmdbIDSchema("The TMDb ID of the movie"),
	}
}

func getMovieCreditsTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "get_movie_credits",
		Description: "Get the top-billed cast and the directors of a movie.",
		InputSchema: tmdbIDSchema("The TMDb ID of the movie"),
	}
}

func getSimilarMoviesTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "get_similar_movies",
		Description: "Get movies similar to a given movie.",
		InputSchema: tmdbIDSchema("The TMDb ID of the movie to find similar movies for"),
	}
}

func getMovieReviewsTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "get_movie_reviews",
		Description: "Get user reviews of a movie, one page at a time.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tmdb_id": map[string]any{
					"type":        "integer",
					"description": "The TMDb ID of the movie",
				},
				"page": map[string]any{
					"type":        "integer",
					"description": "1-based page number (default 1)",
				},
			},
			"required": []any{"tmdb_id"},
		},
	}
}

func listGenresTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "list_genres",
		Description: "List the movie genres with their ids, for use with browse_movies.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func tmdbIDSchema(desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tmdb_id": map[string]any{
				"type":        "integer",
				"description": desc,
			},
		},
		"required": []any{"tmdb_id"},
	}
}

// movieSummary is the compact listing entry returned to the model.
type movieSummary struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Year      int     `json:"year,omitempty"`
	Rating    float64 `json:"rating"`
	Genres    string  `json:"genres,omitempty"`
	Overview  string  `json:"overview,omitempty"`
	PosterURL string  `json:"poster_url"`
}

type browseResult struct {
	Kind        string         `json:"kind"`
	Page        int            `json:"page"`
	TotalPages  int            `json:"total_pages"`
	HasNextPage bool           `json:"has_next_page"`
	Results     []movieSummary `json:"results"`
}

func (s *Server) handleBrowseMovies(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Pages == nil {
		return toolError("catalog not configured"), nil
	}

	var args struct {
		Search    string   `json:"search"`
		Genres    []any    `json:"genres"`
		Year      int      `json:"year"`
		RatingMin *float64 `json:"rating_min"`
		RatingMax *float64 `json:"rating_max"`
		Page      int      `json:"page"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return toolError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}

	genres, err := resolveGenres(args.Genres)
	if err != nil {
		return toolError(err.Error()), nil
	}
	filters := query.FilterState{Genres: genres}.
		WithYear(args.Year).
		WithRatingBounds(args.RatingMin, args.RatingMax)
	if err := filters.Validate(); err != nil {
		return toolError(err.Error()), nil
	}

	r := query.NewKey(args.Search, filters).Request(args.Page)
	page, err := s.deps.Pages.Page(ctx, r)
	if err != nil {
		return s.upstreamError("browse_movies", err, slog.String("request", r.String())), nil
	}

	return toolJSON(browseResult{
		Kind:        r.Kind.String(),
		Page:        r.Page,
		TotalPages:  page.TotalPages,
		HasNextPage: r.Page < page.TotalPages,
		Results:     s.summaries(page.Results),
	})
}

func (s *Server) handleGetMovieDetails(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Catalog == nil {
		return toolError("catalog not configured"), nil
	}

	tmdbID, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}

	details, err := s.deps.Catalog.Movie(ctx, tmdbID)
	if err != nil {
		return s.upstreamError("get_movie_details", err, slog.Int("tmdb_id", tmdbID)), nil
	}
	return toolJSON(struct {
		*tmdb.MovieDetails
		PosterURL string `json:"poster_url"`
	}{details, tmdb.PosterURL(details.PosterPath, s.deps.ImageSize)})
}

func (s *Server) handleGetMovieCredits(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Catalog == nil {
		return toolError("catalog not configured"), nil
	}

	tmdbID, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}

	credits, err := s.deps.Catalog.Credits(ctx, tmdbID)
	if err != nil {
		return s.upstreamError("get_movie_credits", err, slog.Int("tmdb_id", tmdbID)), nil
	}
	return toolJSON(map[string]any{
		"cast":      credits.TopCast(10),
		"directors": credits.Directors(),
	})
}

func (s *Server) handleGetSimilarMovies(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Catalog == nil {
		return toolError("catalog not configured"), nil
	}

	tmdbID, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}

	page, err := s.deps.Catalog.Similar(ctx, tmdbID)
	if err != nil {
		return s.upstreamError("get_similar_movies", err, slog.Int("tmdb_id", tmdbID)), nil
	}
	return toolJSON(s.summaries(page.Results))
}

func (s *Server) handleGetMovieReviews(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Catalog == nil {
		return toolError("catalog not configured"), nil
	}

	tmdbID, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}
	page, err := extractIntFromArgs(req.Params.Arguments, "page")
	if err != nil {
		page = 1
	}

	reviews, err := s.deps.Catalog.Reviews(ctx, tmdbID, max(page, 1))
	if err != nil {
		return s.upstreamError("get_movie_reviews", err, slog.Int("tmdb_id", tmdbID)), nil
	}
	return toolJSON(reviews)
}

func (s *Server) handleListGenres(ctx context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.deps.Catalog == nil {
		return toolJSON(tmdb.DefaultGenres)
	}
	genres, err := s.deps.Catalog.Genres(ctx)
	if err != nil {
		s.logger.Warn("genre list unavailable, using built-in table", slog.Any("error", err))
		return toolJSON(tmdb.DefaultGenres)
	}
	return toolJSON(genres)
}

func (s *Server) summaries(movies []tmdb.Movie) []movieSummary {
	out := make([]movieSummary, len(movies))
	for i, m := range movies {
		names := make([]string, 0, len(m.GenreIDs))
		for _, id := range m.GenreIDs {
			if n := tmdb.GenreName(id); n != "" {
				names = append(names, n)
			}
		}
		out[i] = movieSummary{
			ID:        m.ID,
			Title:     m.Title,
			Year:      m.Year(),
			Rating:    m.VoteAverage,
			Genres:    strings.Join(names, ", "),
			Overview:  m.Overview,
			PosterURL: tmdb.PosterURL(m.PosterPath, s.deps.ImageSize),
		}
	}
	return out
}

// resolveGenres accepts genre ids as numbers or numeric strings, and genre
// names.
func resolveGenres(raw []any) ([]int, error) {
	var ids []int
	for _, v := range raw {
		switch g := v.(type) {
		case float64:
			ids = append(ids, int(g))
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(g)); err == nil {
				ids = append(ids, n)
				continue
			}
			genre, ok := tmdb.GenreByName(g)
			if !ok {
				return nil, fmt.Errorf("unknown genre %q", g)
			}
			ids = append(ids, genre.ID)
		default:
			return nil, fmt.Errorf("genres must be ids or names, got %T", v)
		}
	}
	return ids, nil
}

// toolJSON marshals v to JSON and returns it as text content.
func toolJSON(v any) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil
}

// toolError returns a tool result indicating an error.
// loadErrorMessage is the only failure text callers see for catalog errors.
const loadErrorMessage = "Error loading movies"

// upstreamError logs a catalog failure and returns the generic tool error.
func (s *Server) upstreamError(tool string, err error, attrs ...slog.Attr) *mcpsdk.CallToolResult {
	args := []any{slog.String("tool", tool), slog.String("error", err.Error())}
	for _, a := range attrs {
		args = append(args, a)
	}
	s.logger.Warn("catalog request failed", args...)
	return toolError(loadErrorMessage)
}

func toolError(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}

// extractIntFromArgs extracts an integer argument from raw JSON arguments.
func extractIntFromArgs(raw json.RawMessage, key string) (int, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return 0, fmt.Errorf("invalid arguments: %w", err)
	}

	val, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}

	switch v := val.(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, val)
	}
}
