package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

type commandKind int

const (
	cmdHelp commandKind = iota
	cmdReset
	cmdSearch
	cmdPopular
	cmdGenre
	cmdYear
	cmdRating
	cmdClear
	cmdMovie
)

// command is a parsed user message.
type command struct {
	kind  commandKind
	text  string
	genre int
	year  int // 0 = all years
	min   float64
	max   float64
	id    int
}

var errUsage = errors.New("usage")

// parseCommand turns a message into a command. Plain text is a search.
func parseCommand(text string) (command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return command{kind: cmdSearch, text: text}, nil
	}

	name, arg, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@") // "/search@CineScrollBot"
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/start", "/help":
		return command{kind: cmdHelp}, nil
	case "/reset":
		return command{kind: cmdReset}, nil
	case "/popular":
		return command{kind: cmdPopular}, nil
	case "/clear":
		return command{kind: cmdClear}, nil
	case "/search":
		if arg == "" {
			return command{}, fmt.Errorf("%w: /search <title>", errUsage)
		}
		return command{kind: cmdSearch, text: arg}, nil
	case "/genre":
		g, ok := tmdb.GenreByName(arg)
		if !ok {
			return command{}, fmt.Errorf("%w: /genre <name>, e.g. /genre Comedy", errUsage)
		}
		return command{kind: cmdGenre, genre: g.ID}, nil
	case "/year":
		if strings.EqualFold(arg, "all") || arg == "" {
			return command{kind: cmdYear}, nil
		}
		y, err := strconv.Atoi(arg)
		if err != nil {
			return command{}, fmt.Errorf("%w: /year <year|all>", errUsage)
		}
		return command{kind: cmdYear, year: y}, nil
	case "/rating":
		fields := strings.Fields(arg)
		if len(fields) != 2 {
			return command{}, fmt.Errorf("%w: /rating <min> <max>, e.g. /rating 7 10", errUsage)
		}
		lo, err1 := strconv.ParseFloat(fields[0], 64)
		hi, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return command{}, fmt.Errorf("%w: /rating <min> <max>, e.g. /rating 7 10", errUsage)
		}
		return command{kind: cmdRating, min: lo, max: hi}, nil
	case "/movie":
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return command{}, fmt.Errorf("%w: /movie <id>", errUsage)
		}
		return command{kind: cmdMovie, id: id}, nil
	default:
		return command{}, fmt.Errorf("%w: unknown command %s, see /help", errUsage, name)
	}
}

// apply updates the session's search and filters. It reports an error
// when the resulting filters are invalid, leaving the session unchanged.
func (c command) apply(s *session) error {
	search, filters := s.search, s.filters
	switch c.kind {
	case cmdSearch:
		search = c.text
	case cmdPopular:
		search, filters = "", query.FilterState{}
	case cmdGenre:
		search, filters = "", filters.ToggleGenre(c.genre)
	case cmdYear:
		search, filters = "", filters.WithYear(c.year)
	case cmdRating:
		search, filters = "", filters.WithRating(c.min, c.max)
	case cmdClear:
		filters = query.FilterState{}
	}
	if err := filters.Validate(); err != nil {
		return err
	}
	s.search, s.filters = search, filters
	return nil
}

// isFeedCommand reports whether the command changes the listing.
func (c command) isFeedCommand() bool {
	switch c.kind {
	case cmdSearch, cmdPopular, cmdGenre, cmdYear, cmdRating, cmdClear:
		return true
	}
	return false
}
