// Package query turns a search string and a filter selection into one of the
// three catalog request shapes: text search, filtered discovery, or the
// unfiltered popularity listing.
package query

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MinRating = 0.0
	MaxRating = 10.0
)

// RatingRange bounds the average vote, inclusive on both ends.
type RatingRange struct {
	Min float64 `json:"min" validate:"gte=0,lte=10"`
	Max float64 `json:"max" validate:"gte=0,lte=10,gtefield=Min"`
}

// FilterState is a user's filter selection. A nil Year means "all years",
// a nil Rating means no rating bound and an empty Genres means any genre.
type FilterState struct {
	Genres []int        `json:"genres,omitempty" validate:"dive,gt=0"`
	Year   *int         `json:"year,omitempty" validate:"omitempty,gte=1870,lte=2100"`
	Rating *RatingRange `json:"rating,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks year and rating bounds.
func (f FilterState) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid filter %s: %s", fieldName(fe), ValidationMessage(fe))
		}
		return err
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

// ValidationMessage converts a validator error into a readable message.
func ValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gtefield":
		return "must not be below " + strings.ToLower(fe.Param())
	case "required":
		return "is required"
	default:
		return "is invalid"
	}
}

// IsZero reports whether no filter field is set.
func (f FilterState) IsZero() bool {
	return len(f.Genres) == 0 && f.Year == nil && f.Rating == nil
}

// Count is the number of active filters: one per genre plus year and rating.
func (f FilterState) Count() int {
	n := len(f.Genres)
	if f.Year != nil {
		n++
	}
	if f.Rating != nil {
		n++
	}
	return n
}

// Normalized returns a copy with genres sorted and deduplicated.
func (f FilterState) Normalized() FilterState {
	out := FilterState{Year: f.Year, Rating: f.Rating}
	if len(f.Genres) > 0 {
		out.Genres = slices.Clone(f.Genres)
		slices.Sort(out.Genres)
		out.Genres = slices.Compact(out.Genres)
	}
	return out
}

// ToggleGenre adds id when absent and removes it when present.
func (f FilterState) ToggleGenre(id int) FilterState {
	out := f.Normalized()
	if i, found := slices.BinarySearch(out.Genres, id); found {
		out.Genres = slices.Delete(out.Genres, i, i+1)
	} else {
		out.Genres = slices.Insert(out.Genres, i, id)
	}
	if len(out.Genres) == 0 {
		out.Genres = nil
	}
	return out
}

// WithYear returns a copy with the year set; year <= 0 clears it.
func (f FilterState) WithYear(year int) FilterState {
	out := f.Normalized()
	if year <= 0 {
		out.Year = nil
		return out
	}
	out.Year = &year
	return out
}

// WithRating returns a copy with the rating range set. A full 0..10 range
// clears the rating filter since it selects everything.
func (f FilterState) WithRating(lo, hi float64) FilterState {
	out := f.Normalized()
	if lo <= MinRating && hi >= MaxRating {
		out.Rating = nil
		return out
	}
	out.Rating = &RatingRange{Min: lo, Max: hi}
	return out
}

// WithRatingBounds is WithRating for optional bounds: a missing lower bound
// means MinRating and a missing upper bound means MaxRating.
func (f FilterState) WithRatingBounds(lo, hi *float64) FilterState {
	l, h := MinRating, MaxRating
	if lo != nil {
		l = *lo
	}
	if hi != nil {
		h = *hi
	}
	return f.WithRating(l, h)
}

// String renders the canonical form used in cache keys.
func (f FilterState) String() string {
	n := f.Normalized()
	var b strings.Builder
	b.WriteString("genres=")
	b.WriteString(joinInts(n.Genres))
	b.WriteString(";year=")
	if n.Year != nil {
		b.WriteString(strconv.Itoa(*n.Year))
	}
	b.WriteString(";rating=")
	if n.Rating != nil {
		b.WriteString(formatRating(n.Rating.Min))
		b.WriteByte('-')
		b.WriteString(formatRating(n.Rating.Max))
	}
	return b.String()
}

// ParseGenres parses a comma-separated genre id list such as "28,12".
func ParseGenres(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid genre id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func formatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
