package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vadimtrunov/CineScroll/internal/query"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewForTest(server.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func intPtr(v int) *int { return &v }

func TestPopular(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/popular" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Error("missing api_key")
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("unexpected page: %s", r.URL.Query().Get("page"))
		}
		json.NewEncoder(w).Encode(MoviePage{
			Page:       2,
			Results:    []Movie{{ID: 550, Title: "Fight Club"}},
			TotalPages: 500,
		})
	}))

	page, err := client.Popular(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalPages != 500 {
		t.Errorf("expected 500 total pages, got %d", page.TotalPages)
	}
	if len(page.Results) != 1 || page.Results[0].Title != "Fight Club" {
		t.Errorf("unexpected results: %+v", page.Results)
	}
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") != "inception" {
			t.Errorf("unexpected query: %s", r.URL.Query().Get("query"))
		}
		json.NewEncoder(w).Encode(MoviePage{
			Page:       1,
			Results:    []Movie{{ID: 27205, Title: "Inception", VoteAverage: 8.4, ReleaseDate: "2010-07-16"}},
			TotalPages: 1,
		})
	}))

	page, err := client.Search(context.Background(), "inception", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Results[0].ID != 27205 {
		t.Errorf("expected ID 27205, got %d", page.Results[0].ID)
	}
	if page.Results[0].Year() != 2010 {
		t.Errorf("expected year 2010, got %d", page.Results[0].Year())
	}
}

func TestDiscover(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discover/movie" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("with_genres") != "28" {
			t.Errorf("with_genres = %q", q.Get("with_genres"))
		}
		if q.Get("vote_average.gte") != "7" || q.Get("vote_average.lte") != "10" {
			t.Errorf("rating bounds = %q..%q", q.Get("vote_average.gte"), q.Get("vote_average.lte"))
		}
		if q.Has("year") {
			t.Error("unset year should be omitted")
		}
		if q.Get("page") != "2" {
			t.Errorf("page = %q", q.Get("page"))
		}
		json.NewEncoder(w).Encode(MoviePage{Page: 2, TotalPages: 3})
	}))

	filters := query.FilterState{Genres: []int{28}, Rating: &query.RatingRange{Min: 7, Max: 10}}
	if _, err := client.Discover(context.Background(), filters, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchDispatchesOnKind(t *testing.T) {
	var gotPath atomic.Value
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		json.NewEncoder(w).Encode(MoviePage{Page: 1, TotalPages: 1})
	}))

	tests := []struct {
		req  query.Request
		path string
	}{
		{query.Build("", query.FilterState{}, 1), "/movie/popular"},
		{query.Build("dune", query.FilterState{Year: intPtr(2021)}, 1), "/search/movie"},
		{query.Build("", query.FilterState{Year: intPtr(2021)}, 1), "/discover/movie"},
	}
	for _, tt := range tests {
		if _, err := client.Fetch(context.Background(), tt.req); err != nil {
			t.Fatalf("Fetch(%s): %v", tt.req, err)
		}
		if got := gotPath.Load(); got != tt.path {
			t.Errorf("Fetch(%s) hit %v, want %s", tt.req, got, tt.path)
		}
	}
}

func TestMovie(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/550" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"id": 550, "title": "Fight Club", "release_date": "1999-10-15",
			"vote_average": 8.4, "vote_count": 26000, "runtime": 139,
			"budget": 63000000, "revenue": 100853753, "status": "Released",
			"genres": [{"id": 18, "name": "Drama"}],
			"production_companies": [{"id": 508, "name": "Regency Enterprises"}]
		}`))
	}))

	details, err := client.Movie(context.Background(), 550)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Title != "Fight Club" {
		t.Errorf("expected Fight Club, got %s", details.Title)
	}
	if details.Runtime != 139 {
		t.Errorf("expected runtime 139, got %d", details.Runtime)
	}
	if details.Budget != 63000000 {
		t.Errorf("expected budget 63000000, got %d", details.Budget)
	}
	if len(details.ProductionCompanies) != 1 || details.Genres[0].Name != "Drama" {
		t.Errorf("unexpected nested data: %+v", details)
	}
}

func TestCredits(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/550/credits" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Credits{
			ID:   550,
			Cast: []CastMember{{Name: "Edward Norton", Character: "The Narrator"}, {Name: "Brad Pitt"}},
			Crew: []CrewMember{{Name: "David Fincher", Job: "Director"}, {Name: "Jim Uhls", Job: "Screenplay"}},
		})
	}))

	credits, err := client.Credits(context.Background(), 550)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := credits.TopCast(1); len(got) != 1 || got[0].Name != "Edward Norton" {
		t.Errorf("TopCast(1) = %+v", got)
	}
	if got := credits.TopCast(10); len(got) != 2 {
		t.Errorf("TopCast(10) len = %d, want 2", len(got))
	}
	if d := credits.Directors(); len(d) != 1 || d[0].Name != "David Fincher" {
		t.Errorf("Directors() = %+v", d)
	}
}

func TestSimilar(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/550/similar" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(MoviePage{Page: 1, Results: []Movie{{ID: 11, Title: "Star Wars"}}})
	}))

	page, err := client.Similar(context.Background(), 550)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 1 {
		t.Fatalf("expected 1 movie, got %d", len(page.Results))
	}
}

func TestReviews(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/550/reviews" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("unexpected page: %s", r.URL.Query().Get("page"))
		}
		w.Write([]byte(`{"id":550,"page":2,"total_pages":3,"results":[
			{"id":"abc","author":"Goddard","content":"Pretty awesome.","created_at":"2018-06-09T17:51:53.359Z",
			 "author_details":{"username":"Goddard","rating":9.0,"avatar_path":null}}]}`))
	}))

	page, err := client.Reviews(context.Background(), 550, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalPages != 3 || len(page.Results) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	r := page.Results[0]
	if r.AuthorDetails.Rating == nil || *r.AuthorDetails.Rating != 9 {
		t.Errorf("unexpected rating: %v", r.AuthorDetails.Rating)
	}
	if r.AuthorDetails.AvatarPath != nil {
		t.Errorf("expected nil avatar, got %v", *r.AuthorDetails.AvatarPath)
	}
}

func TestGenres(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/genre/movie/list" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"genres":[{"id":28,"name":"Action"}]}`))
	}))

	genres, err := client.Genres(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(genres) != 1 || genres[0].Name != "Action" {
		t.Errorf("unexpected genres: %+v", genres)
	}
}

func TestDetailCaching(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(MovieDetails{Movie: Movie{ID: 1, Title: "Test"}})
	}))

	for range 2 {
		if _, err := client.Movie(context.Background(), 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 server call (cache hit), got %d", calls.Load())
	}
}

func TestListingsAreNotCachedByClient(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(MoviePage{Page: 1, TotalPages: 1})
	}))

	for range 2 {
		if _, err := client.Popular(context.Background(), 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 server calls, got %d", calls.Load())
	}
}

func TestAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status_message": "Invalid API key"}`))
	}))

	_, err := client.Search(context.Background(), "test", 1)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("401 should not be reported as not found")
	}
}

func TestNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Movie(context.Background(), 999999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		path   string
		size   ImageSize
		expect string
	}{
		{"/abc123.jpg", SizeW500, "https://image.tmdb.org/t/p/w500/abc123.jpg"},
		{"", SizeW500, ""},
		{"/poster.jpg", SizeOriginal, "https://image.tmdb.org/t/p/original/poster.jpg"},
		{"/poster.jpg", "", "https://image.tmdb.org/t/p/w300/poster.jpg"},
	}
	for _, tt := range tests {
		got := ImageURL(tt.path, tt.size)
		if got != tt.expect {
			t.Errorf("ImageURL(%q, %q) = %q, want %q", tt.path, tt.size, got, tt.expect)
		}
	}

	if PosterURL("", SizeW200) != PosterPlaceholderURL {
		t.Error("expected placeholder for empty poster path")
	}
	if ParseImageSize("huge") != DefaultImageSize {
		t.Error("unknown size should fall back to default")
	}
}

func TestGenreLookup(t *testing.T) {
	g, ok := GenreByName("science fiction")
	if !ok || g.ID != 878 {
		t.Errorf("GenreByName = %+v, %v", g, ok)
	}
	if GenreName(28) != "Action" {
		t.Errorf("GenreName(28) = %q", GenreName(28))
	}
	if _, ok := GenreByName("polka"); ok {
		t.Error("expected unknown genre")
	}
}

func TestTransportErrorDoesNotLeakAPIKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := New(Config{APIKey: "SECRET123", BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := client.Popular(context.Background(), 1)
	if err == nil {
		t.Fatal("expected an error from a closed server")
	}
	if strings.Contains(err.Error(), "SECRET123") {
		t.Errorf("error leaks api key: %v", err)
	}
	if !strings.Contains(err.Error(), "/movie/popular") {
		t.Errorf("error should still name the endpoint: %v", err)
	}
}
