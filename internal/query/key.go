package query

import (
	"strconv"
	"strings"
)

// Key identifies one logical result set: the settled search text plus the
// filter selection. Pages of the same Key are accumulated together.
type Key struct {
	Search  string
	Filters FilterState
}

// NewKey builds a Key with trimmed search text and normalized filters.
func NewKey(search string, filters FilterState) Key {
	return Key{Search: strings.TrimSpace(search), Filters: filters.Normalized()}
}

// Request builds the listing request for the given 1-based page.
func (k Key) Request(page int) Request {
	return Build(k.Search, k.Filters, page)
}

// String is the canonical form of the key; equal strings mean equal keys.
func (k Key) String() string {
	return "search=" + strconv.Quote(strings.TrimSpace(k.Search)) + ";" + k.Filters.String()
}

// Equal reports whether k and other select the same result set.
func (k Key) Equal(other Key) bool {
	return k.String() == other.String()
}
