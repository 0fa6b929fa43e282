package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

// maxPage is the deepest page TMDb serves for listings.
const maxPage = 500

// moviesParams are the decoded query parameters of GET /api/movies.
type moviesParams struct {
	Search    string   `query:"search" validate:"max=200"`
	Genres    []int    `query:"genres" validate:"dive,gt=0"`
	Year      *int     `query:"year" validate:"omitempty,gte=1870,lte=2100"`
	RatingMin *float64 `query:"rating_min" validate:"omitempty,gte=0,lte=10"`
	RatingMax *float64 `query:"rating_max" validate:"omitempty,gte=0,lte=10"`
	Page      int      `query:"page" validate:"gte=1,lte=500"`
}

// MovieResponse is a movie with image paths resolved to URLs.
type MovieResponse struct {
	tmdb.Movie
	PosterURL   string `json:"poster_url"`
	BackdropURL string `json:"backdrop_url,omitempty"`
}

// PageResponse is one listing page.
type PageResponse struct {
	Results      []MovieResponse `json:"results"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	TotalResults int             `json:"total_results"`
	HasNextPage  bool            `json:"has_next_page"`
	Kind         string          `json:"kind"`
	Key          string          `json:"key"`
}

// DetailsResponse is a movie's detail view.
type DetailsResponse struct {
	tmdb.MovieDetails
	PosterURL   string `json:"poster_url"`
	BackdropURL string `json:"backdrop_url,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		s.logError(r, err)
	}
}

func (s *Server) handleMovies(w http.ResponseWriter, r *http.Request) {
	params, field, err := parseMoviesParams(r)
	if err != nil {
		s.badRequestResponse(w, r, field, err.Error())
		return
	}
	if err := s.validator.Struct(params); err != nil {
		s.failedValidationResponse(w, r, err)
		return
	}

	filters := query.FilterState{Genres: params.Genres}
	if params.Year != nil {
		filters = filters.WithYear(*params.Year)
	}
	filters = filters.WithRatingBounds(params.RatingMin, params.RatingMax)
	if err := filters.Validate(); err != nil {
		s.badRequestResponse(w, r, "rating", err.Error())
		return
	}

	key := query.NewKey(params.Search, filters)
	req := key.Request(params.Page)
	page, err := s.pages.Page(r.Context(), req)
	if err != nil {
		s.upstreamErrorResponse(w, r, err)
		return
	}

	resp := PageResponse{
		Results:      s.movies(page.Results),
		Page:         req.Page,
		TotalPages:   page.TotalPages,
		TotalResults: page.TotalResults,
		HasNextPage:  req.Page < page.TotalPages,
		Kind:         req.Kind.String(),
		Key:          key.String(),
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) handleMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := s.movieID(w, r)
	if !ok {
		return
	}
	details, err := s.catalog.Movie(r.Context(), id)
	if err != nil {
		s.upstreamErrorResponse(w, r, err)
		return
	}
	resp := DetailsResponse{
		MovieDetails: *details,
		PosterURL:    tmdb.PosterURL(details.PosterPath, s.imageSize),
		BackdropURL:  tmdb.ImageURL(details.BackdropPath, tmdb.SizeOriginal),
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := s.movieID(w, r)
	if !ok {
		return
	}
	credits, err := s.catalog.Credits(r.Context(), id)
	if err != nil {
		s.upstreamErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, credits); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := s.movieID(w, r)
	if !ok {
		return
	}
	page, err := s.catalog.Similar(r.Context(), id)
	if err != nil {
		s.upstreamErrorResponse(w, r, err)
		return
	}
	resp := PageResponse{
		Results:      s.movies(page.Results),
		Page:         page.Page,
		TotalPages:   page.TotalPages,
		TotalResults: page.TotalResults,
		HasNextPage:  page.Page < page.TotalPages,
		Kind:         "similar",
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := s.movieID(w, r)
	if !ok {
		return
	}
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPage {
			s.badRequestResponse(w, r, "page", "must be an integer between 1 and 500")
			return
		}
		page = n
	}
	reviews, err := s.catalog.Reviews(r.Context(), id, page)
	if err != nil {
		s.upstreamErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, reviews); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.catalog.Genres(r.Context())
	if err != nil {
		// Fall back to the built-in table so filter menus still render.
		s.logError(r, err)
		genres = tmdb.DefaultGenres
	}
	if err := writeJSON(w, http.StatusOK, map[string]any{"genres": genres}); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

// movieID parses the {id} path parameter, replying 400 when invalid.
func (s *Server) movieID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		s.badRequestResponse(w, r, "id", "must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) movies(in []tmdb.Movie) []MovieResponse {
	out := make([]MovieResponse, len(in))
	for i, m := range in {
		out[i] = MovieResponse{
			Movie:       m,
			PosterURL:   tmdb.PosterURL(m.PosterPath, s.imageSize),
			BackdropURL: tmdb.ImageURL(m.BackdropPath, tmdb.SizeOriginal),
		}
	}
	return out
}

// parseMoviesParams decodes the listing parameters. On failure it returns
// the offending parameter name.
func parseMoviesParams(r *http.Request) (moviesParams, string, error) {
	q := r.URL.Query()
	p := moviesParams{Search: strings.TrimSpace(q.Get("search")), Page: 1}

	genres, err := query.ParseGenres(q.Get("genres"))
	if err != nil {
		return p, "genres", err
	}
	p.Genres = genres

	if v := q.Get("year"); v != "" && v != "all" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return p, "year", errNotInteger
		}
		p.Year = &year
	}
	if p.RatingMin, err = parseFloatParam(q.Get("rating_min")); err != nil {
		return p, "rating_min", err
	}
	if p.RatingMax, err = parseFloatParam(q.Get("rating_max")); err != nil {
		return p, "rating_max", err
	}
	if v := q.Get("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil {
			return p, "page", errNotInteger
		}
	}
	return p, "", nil
}

func parseFloatParam(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errNotNumber
	}
	return &f, nil
}
