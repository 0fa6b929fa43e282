package tmdb

import "strings"

// DefaultGenres is TMDb's movie genre list, used for filter menus without a
// round trip to /genre/movie/list.
var DefaultGenres = []Genre{
	{ID: 28, Name: "Action"},
	{ID: 12, Name: "Adventure"},
	{ID: 16, Name: "Animation"},
	{ID: 35, Name: "Comedy"},
	{ID: 80, Name: "Crime"},
	{ID: 99, Name: "Documentary"},
	{ID: 18, Name: "Drama"},
	{ID: 10751, Name: "Family"},
	{ID: 14, Name: "Fantasy"},
	{ID: 36, Name: "History"},
	{ID: 27, Name: "Horror"},
	{ID: 10402, Name: "Music"},
	{ID: 9648, Name: "Mystery"},
	{ID: 10749, Name: "Romance"},
	{ID: 878, Name: "Science Fiction"},
	{ID: 10770, Name: "TV Movie"},
	{ID: 53, Name: "Thriller"},
	{ID: 10752, Name: "War"},
	{ID: 37, Name: "Western"},
}

// GenreByName finds a genre in DefaultGenres, case-insensitively.
func GenreByName(name string) (Genre, bool) {
	name = strings.TrimSpace(name)
	for _, g := range DefaultGenres {
		if strings.EqualFold(g.Name, name) {
			return g, true
		}
	}
	return Genre{}, false
}

// GenreName returns the name for id, or "" if unknown.
func GenreName(id int) string {
	for _, g := range DefaultGenres {
		if g.ID == id {
			return g.Name
		}
	}
	return ""
}
