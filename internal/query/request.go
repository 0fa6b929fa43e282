package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Kind identifies which catalog endpoint a Request targets.
type Kind int

const (
	KindPopular Kind = iota
	KindSearch
	KindDiscover
)

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindDiscover:
		return "discover"
	default:
		return "popular"
	}
}

// Request is a fully resolved catalog listing request.
type Request struct {
	Kind    Kind
	Query   string
	Page    int
	Filters FilterState
}

// Build selects the request shape. Non-empty search text always wins over
// filters; filters win over the plain popularity listing. Pages below 1 are
// clamped to 1.
func Build(search string, filters FilterState, page int) Request {
	if page < 1 {
		page = 1
	}
	if q := strings.TrimSpace(search); q != "" {
		return Request{Kind: KindSearch, Query: q, Page: page}
	}
	if !filters.IsZero() {
		return Request{Kind: KindDiscover, Page: page, Filters: filters.Normalized()}
	}
	return Request{Kind: KindPopular, Page: page}
}

// Path is the endpoint path relative to the API base URL.
func (r Request) Path() string {
	switch r.Kind {
	case KindSearch:
		return "/search/movie"
	case KindDiscover:
		return "/discover/movie"
	default:
		return "/movie/popular"
	}
}

// Values encodes the request parameters. Unset filter fields are omitted.
func (r Request) Values() url.Values {
	v := url.Values{"page": {strconv.Itoa(r.Page)}}
	switch r.Kind {
	case KindSearch:
		v.Set("query", r.Query)
	case KindDiscover:
		f := r.Filters
		if len(f.Genres) > 0 {
			v.Set("with_genres", joinInts(f.Genres))
		}
		if f.Year != nil {
			v.Set("year", strconv.Itoa(*f.Year))
		}
		if f.Rating != nil {
			v.Set("vote_average.gte", formatRating(f.Rating.Min))
			v.Set("vote_average.lte", formatRating(f.Rating.Max))
		}
	}
	return v
}

// String is the request identity used as a page cache key.
func (r Request) String() string {
	return r.Path() + "?" + r.Values().Encode()
}
