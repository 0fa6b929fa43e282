package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePages struct {
	mu   sync.Mutex
	reqs []query.Request
	page *tmdb.MoviePage
	err  error
}

func (f *fakePages) Page(_ context.Context, req query.Request) (*tmdb.MoviePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	p := *f.page
	p.Page = req.Page
	return &p, nil
}

func (f *fakePages) last() query.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fakeCatalog struct {
	err error
}

func (f *fakeCatalog) Movie(_ context.Context, id int) (*tmdb.MovieDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.MovieDetails{
		Movie:   tmdb.Movie{ID: id, Title: "Inception", PosterPath: "/poster.jpg"},
		Runtime: 148,
	}, nil
}

func (f *fakeCatalog) Credits(_ context.Context, id int) (*tmdb.Credits, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.Credits{ID: id, Cast: []tmdb.CastMember{{ID: 1, Name: "Leonardo DiCaprio"}}}, nil
}

func (f *fakeCatalog) Similar(_ context.Context, _ int) (*tmdb.MoviePage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.MoviePage{Page: 1, TotalPages: 3, Results: []tmdb.Movie{{ID: 2, Title: "Interstellar"}}}, nil
}

func (f *fakeCatalog) Reviews(_ context.Context, id, page int) (*tmdb.ReviewPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.ReviewPage{ID: id, Page: page, TotalPages: 1}, nil
}

func (f *fakeCatalog) Genres(_ context.Context) ([]tmdb.Genre, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []tmdb.Genre{{ID: 28, Name: "Action"}}, nil
}

func newTestServer(pages *fakePages, catalog *fakeCatalog) http.Handler {
	if pages == nil {
		pages = &fakePages{page: &tmdb.MoviePage{TotalPages: 2}}
	}
	if catalog == nil {
		catalog = &fakeCatalog{}
	}
	return NewServer(Deps{Pages: pages, Catalog: catalog}, discardLogger).Routes()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMovies_PopularByDefault(t *testing.T) {
	pages := &fakePages{page: &tmdb.MoviePage{
		TotalPages:   3,
		TotalResults: 60,
		Results:      []tmdb.Movie{{ID: 1, Title: "A", PosterPath: "/a.jpg"}, {ID: 2, Title: "B"}},
	}}
	rec := get(t, newTestServer(pages, nil), "/api/movies")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[PageResponse](t, rec)
	assert.Equal(t, "popular", resp.Kind)
	assert.Equal(t, 1, resp.Page)
	assert.True(t, resp.HasNextPage)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://image.tmdb.org/t/p/w300/a.jpg", resp.Results[0].PosterURL)
	assert.Equal(t, tmdb.PosterPlaceholderURL, resp.Results[1].PosterURL)
	assert.Equal(t, query.KindPopular, pages.last().Kind)
}

func TestMovies_SearchWinsOverFilters(t *testing.T) {
	pages := &fakePages{page: &tmdb.MoviePage{TotalPages: 1}}
	rec := get(t, newTestServer(pages, nil), "/api/movies?search=%20matrix%20&genres=28&year=1999&page=2")
	require.Equal(t, http.StatusOK, rec.Code)

	req := pages.last()
	assert.Equal(t, query.KindSearch, req.Kind)
	assert.Equal(t, "matrix", req.Query)
	assert.Equal(t, 2, req.Page)
	assert.False(t, decode[PageResponse](t, rec).HasNextPage)
}

func TestMovies_Discover(t *testing.T) {
	pages := &fakePages{page: &tmdb.MoviePage{TotalPages: 5}}
	rec := get(t, newTestServer(pages, nil), "/api/movies?genres=12,28&rating_min=7")
	require.Equal(t, http.StatusOK, rec.Code)

	req := pages.last()
	assert.Equal(t, query.KindDiscover, req.Kind)
	vals := req.Values()
	assert.Equal(t, "12,28", vals.Get("with_genres"))
	assert.Equal(t, "7", vals.Get("vote_average.gte"))
	assert.Equal(t, "10", vals.Get("vote_average.lte"))
	assert.Empty(t, vals.Get("year"))
}

func TestMovies_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
		field  string
	}{
		{"page_not_integer", "/api/movies?page=two", "page"},
		{"page_zero", "/api/movies?page=0", "page"},
		{"page_too_deep", "/api/movies?page=501", "page"},
		{"bad_genre", "/api/movies?genres=28,x", "genres"},
		{"negative_genre", "/api/movies?genres=-1", "genres[0]"},
		{"year_too_early", "/api/movies?year=1700", "year"},
		{"rating_out_of_range", "/api/movies?rating_min=11", "rating_min"},
		{"rating_not_number", "/api/movies?rating_max=high", "rating_max"},
		{"rating_inverted", "/api/movies?rating_min=8&rating_max=3", "rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := &fakePages{page: &tmdb.MoviePage{}}
			rec := get(t, newTestServer(pages, nil), tt.target)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			resp := decode[ErrorResponse](t, rec)
			require.NotEmpty(t, resp.ValidationErrors)
			assert.Equal(t, tt.field, resp.ValidationErrors[0].Field)
			assert.Empty(t, pages.reqs, "no fetch for invalid parameters")
		})
	}
}

func TestMovies_UpstreamFailure(t *testing.T) {
	pages := &fakePages{err: errors.New("connection refused")}
	rec := get(t, newTestServer(pages, nil), "/api/movies")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, LoadErrorMessage, resp.Message)
	assert.NotEmpty(t, resp.RequestID)
}

func TestMovieDetails(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/api/movies/27205")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[DetailsResponse](t, rec)
	assert.Equal(t, 27205, resp.ID)
	assert.Equal(t, 148, resp.Runtime)
	assert.Equal(t, "https://image.tmdb.org/t/p/w300/poster.jpg", resp.PosterURL)
}

func TestMovieSubresources(t *testing.T) {
	h := newTestServer(nil, nil)

	rec := get(t, h, "/api/movies/27205/credits")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Leonardo DiCaprio", decode[tmdb.Credits](t, rec).Cast[0].Name)

	rec = get(t, h, "/api/movies/27205/similar")
	require.Equal(t, http.StatusOK, rec.Code)
	similar := decode[PageResponse](t, rec)
	assert.Equal(t, "similar", similar.Kind)
	assert.True(t, similar.HasNextPage)

	rec = get(t, h, "/api/movies/27205/reviews?page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[tmdb.ReviewPage](t, rec).Page)

	rec = get(t, h, "/api/movies/27205/reviews?page=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMovieDetails_Errors(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/api/movies/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, newTestServer(nil, &fakeCatalog{err: tmdb.ErrNotFound}), "/api/movies/1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, newTestServer(nil, &fakeCatalog{err: errors.New("boom")}), "/api/movies/1/credits")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, LoadErrorMessage, decode[ErrorResponse](t, rec).Message)
}

func TestGenres(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/api/genres")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"genres":[{"id":28,"name":"Action"}]}`, rec.Body.String())
}

func TestGenres_FallbackToBuiltin(t *testing.T) {
	rec := get(t, newTestServer(nil, &fakeCatalog{err: errors.New("down")}), "/api/genres")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[struct {
		Genres []tmdb.Genre `json:"genres"`
	}](t, rec)
	assert.Len(t, resp.Genres, len(tmdb.DefaultGenres))
}

func TestNotFoundAndMethod(t *testing.T) {
	h := newTestServer(nil, nil)
	rec := get(t, h, "/api/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/movies", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
