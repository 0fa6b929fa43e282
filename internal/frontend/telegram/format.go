package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

// mdV2Replacer escapes special characters for Telegram MarkdownV2.
var mdV2Replacer = strings.NewReplacer(
	`\`, `\\`,
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMdV2 escapes a string for safe use in Telegram MarkdownV2.
func EscapeMdV2(s string) string {
	return mdV2Replacer.Replace(s)
}

// FormatBold returns MarkdownV2 bold text.
func FormatBold(s string) string {
	return "*" + EscapeMdV2(s) + "*"
}

// FormatItalic returns MarkdownV2 italic text.
func FormatItalic(s string) string {
	return "_" + EscapeMdV2(s) + "_"
}

// stripMdV2 turns MarkdownV2 produced by this package back into plain text.
func stripMdV2(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '*' || r == '_':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatMovieList renders movies as a numbered MarkdownV2 list starting
// at number start.
func FormatMovieList(movies []tmdb.Movie, start int) string {
	var b strings.Builder
	for i, m := range movies {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(EscapeMdV2(strconv.Itoa(start+i) + ". "))
		b.WriteString(FormatBold(m.Title))
		if y := m.Year(); y > 0 {
			b.WriteString(EscapeMdV2(fmt.Sprintf(" (%d)", y)))
		}
		b.WriteString(EscapeMdV2(fmt.Sprintf(" ★ %.1f · /movie %d", m.VoteAverage, m.ID)))
	}
	return b.String()
}

// FormatDetails renders a movie's detail view. credits may be nil.
func FormatDetails(d *tmdb.MovieDetails, credits *tmdb.Credits) string {
	var b strings.Builder

	title := d.Title
	if y := d.Year(); y > 0 {
		title = fmt.Sprintf("%s (%d)", title, y)
	}
	b.WriteString(FormatBold(title))
	if d.Tagline != "" {
		b.WriteString("\n" + FormatItalic(d.Tagline))
	}

	var facts []string
	facts = append(facts, fmt.Sprintf("★ %.1f (%d votes)", d.VoteAverage, d.VoteCount))
	if d.Runtime > 0 {
		facts = append(facts, fmt.Sprintf("%dh %02dm", d.Runtime/60, d.Runtime%60))
	}
	if len(d.Genres) > 0 {
		names := make([]string, len(d.Genres))
		for i, g := range d.Genres {
			names[i] = g.Name
		}
		facts = append(facts, strings.Join(names, ", "))
	}
	if d.Status != "" {
		facts = append(facts, d.Status)
	}
	b.WriteString("\n" + EscapeMdV2(strings.Join(facts, " · ")))

	if d.Overview != "" {
		b.WriteString("\n\n" + EscapeMdV2(d.Overview))
	}

	if credits != nil {
		if dirs := credits.Directors(); len(dirs) > 0 {
			names := make([]string, len(dirs))
			for i, c := range dirs {
				names[i] = c.Name
			}
			b.WriteString("\n\n" + FormatBold("Director: ") + EscapeMdV2(strings.Join(names, ", ")))
		}
		if cast := credits.TopCast(5); len(cast) > 0 {
			names := make([]string, len(cast))
			for i, c := range cast {
				names[i] = c.Name
			}
			b.WriteString("\n" + FormatBold("Cast: ") + EscapeMdV2(strings.Join(names, ", ")))
		}
	}
	return b.String()
}

// DescribeFilters renders the active filters for a listing heading.
func DescribeFilters(f query.FilterState) string {
	var parts []string
	for _, id := range f.Normalized().Genres {
		if name := tmdb.GenreName(id); name != "" {
			parts = append(parts, name)
		} else {
			parts = append(parts, "genre "+strconv.Itoa(id))
		}
	}
	if f.Year != nil {
		parts = append(parts, strconv.Itoa(*f.Year))
	}
	if f.Rating != nil {
		parts = append(parts, fmt.Sprintf("rated %g-%g", f.Rating.Min, f.Rating.Max))
	}
	return strings.Join(parts, ", ")
}
