package tmdb

import (
	"strconv"
	"strings"
)

// Movie is a catalog listing entry as returned by search, discover and
// popular listings.
type Movie struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	GenreIDs     []int   `json:"genre_ids"`
}

// Year returns the release year, or 0 when the release date is unknown.
func (m Movie) Year() int {
	return yearOf(m.ReleaseDate)
}

func yearOf(date string) int {
	y, _, ok := strings.Cut(date, "-")
	if !ok && len(date) != 4 {
		return 0
	}
	n, err := strconv.Atoi(y)
	if err != nil {
		return 0
	}
	return n
}

// MovieDetails represents the detail view of a single movie.
type MovieDetails struct {
	Movie
	Runtime             int       `json:"runtime"`
	Genres              []Genre   `json:"genres"`
	ProductionCompanies []Company `json:"production_companies"`
	Budget              int64     `json:"budget"`
	Revenue             int64     `json:"revenue"`
	Status              string    `json:"status"`
	Tagline             string    `json:"tagline"`
	IMDbID              string    `json:"imdb_id"`
}

// Genre represents a movie genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Company is a production company credited on a movie.
type Company struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	LogoPath string `json:"logo_path"`
}

// MoviePage is one page of a paginated movie listing.
type MoviePage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// CastMember is an actor credit.
type CastMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
	Order       int    `json:"order"`
}

// CrewMember is a non-acting credit.
type CrewMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	Department  string `json:"department"`
	ProfilePath string `json:"profile_path"`
}

// Credits lists a movie's cast and crew.
type Credits struct {
	ID   int          `json:"id"`
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// TopCast returns at most n cast members in billing order.
func (c *Credits) TopCast(n int) []CastMember {
	if n > len(c.Cast) {
		n = len(c.Cast)
	}
	return c.Cast[:n]
}

// Directors returns crew members whose job is Director.
func (c *Credits) Directors() []CrewMember {
	var out []CrewMember
	for _, m := range c.Crew {
		if m.Job == "Director" {
			out = append(out, m)
		}
	}
	return out
}

// ReviewAuthor describes who wrote a review.
type ReviewAuthor struct {
	Name       string   `json:"name"`
	Username   string   `json:"username"`
	AvatarPath *string  `json:"avatar_path"`
	Rating     *float64 `json:"rating"`
}

// Review is a user review of a movie.
type Review struct {
	ID            string       `json:"id"`
	Author        string       `json:"author"`
	Content       string       `json:"content"`
	CreatedAt     string       `json:"created_at"`
	URL           string       `json:"url"`
	AuthorDetails ReviewAuthor `json:"author_details"`
}

// ReviewPage is one page of reviews.
type ReviewPage struct {
	ID           int      `json:"id"`
	Page         int      `json:"page"`
	Results      []Review `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

type genreListResponse struct {
	Genres []Genre `json:"genres"`
}
