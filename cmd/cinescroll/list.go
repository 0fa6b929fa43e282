package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vadimtrunov/CineScroll/internal/config"
	"github.com/vadimtrunov/CineScroll/internal/feed"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

// listOptions are the flags of the "list" command.
type listOptions struct {
	search    string
	genres    []string
	year      int
	minRating float64
	maxRating float64
	page      int
	pages     int
}

func newListCmd() *cobra.Command {
	opts := listOptions{minRating: query.MinRating, maxRating: query.MaxRating}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one or more pages of movies",
		Long: "Print movies as a table. A search lists matching titles and ignores filters;\n" +
			"otherwise genre, year and rating filters apply; with neither, popular movies are listed.",
		Example: `  cinescroll list
  cinescroll list --search "blade runner"
  cinescroll list --genre Action --genre 878 --year 1999 --min-rating 7 --pages 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.search, "search", "s", "", "title text to search for")
	f.StringSliceVarP(&opts.genres, "genre", "g", nil, "genre name or id (repeatable)")
	f.IntVarP(&opts.year, "year", "y", 0, "release year")
	f.Float64Var(&opts.minRating, "min-rating", query.MinRating, "minimum vote average (0-10)")
	f.Float64Var(&opts.maxRating, "max-rating", query.MaxRating, "maximum vote average (0-10)")
	f.IntVar(&opts.page, "page", 1, "fetch this single page")
	f.IntVar(&opts.pages, "pages", 1, "fetch this many pages starting at page 1")
	cmd.MarkFlagsMutuallyExclusive("page", "pages")
	return cmd
}

// key builds the listing key from the flags.
func (o listOptions) key() (query.Key, error) {
	var filters query.FilterState
	for _, g := range o.genres {
		id, err := resolveGenre(g)
		if err != nil {
			return query.Key{}, err
		}
		filters.Genres = append(filters.Genres, id)
	}
	filters = filters.WithYear(o.year).WithRating(o.minRating, o.maxRating)
	if err := filters.Validate(); err != nil {
		return query.Key{}, err
	}
	return query.NewKey(o.search, filters), nil
}

// resolveGenre accepts a genre id or a genre name.
func resolveGenre(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	g, ok := tmdb.GenreByName(s)
	if !ok {
		return 0, fmt.Errorf("unknown genre %q", s)
	}
	return g.ID, nil
}

func runList(out io.Writer, opts listOptions) error {
	key, err := opts.key()
	if err != nil {
		return err
	}
	if opts.page < 1 || opts.pages < 1 {
		return errors.New("--page and --pages must be at least 1")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg.App.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := initCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	var (
		movies     []tmdb.Movie
		first      = 1
		totalPages int
	)
	if opts.page > 1 {
		req := key.Request(opts.page)
		page, err := cat.pages.Page(ctx, req)
		if err != nil {
			return loadFailure(logger, err)
		}
		movies, totalPages, first = page.Results, page.TotalPages, (opts.page-1)*len(page.Results)+1
	} else {
		snap, err := collectPages(ctx, feed.New(cat.pages, key, logger), opts.pages)
		if err != nil {
			return loadFailure(logger, err)
		}
		movies, totalPages = snap.Movies, snap.TotalPages
	}

	fmt.Fprintln(out, styleHeader.Render(describeKey(key)))
	if len(movies) == 0 {
		fmt.Fprintln(out, styleDim.Render("No movies found"))
		return nil
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "ID", "Title", "Year", "Rating", "Votes", "Genres"},
		movieRows(movies, first),
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintln(out, styleDim.Render(fmt.Sprintf("%d movies, %s pages available", len(movies), humanize.Comma(int64(totalPages)))))
	return nil
}

// collectPages loads up to n pages into f and returns the final snapshot.
func collectPages(ctx context.Context, f *feed.Feed, n int) (feed.Snapshot, error) {
	if err := f.Load(ctx); err != nil {
		return feed.Snapshot{}, err
	}
	for f.Snapshot().Pages < n {
		err := f.FetchNextPage(ctx)
		if errors.Is(err, feed.ErrNoMorePages) {
			break
		}
		if err != nil {
			return feed.Snapshot{}, err
		}
	}
	return f.Snapshot(), nil
}

func movieRows(movies []tmdb.Movie, first int) [][]string {
	rows := make([][]string, len(movies))
	for i, m := range movies {
		year := ""
		if y := m.Year(); y > 0 {
			year = strconv.Itoa(y)
		}
		rows[i] = []string{
			strconv.Itoa(first + i),
			strconv.Itoa(m.ID),
			m.Title,
			year,
			fmt.Sprintf("%.1f", m.VoteAverage),
			humanize.Comma(int64(m.VoteCount)),
			genreNames(m.GenreIDs),
		}
	}
	return rows
}

func genreNames(ids []int) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := tmdb.GenreName(id); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

// describeKey is a one-line summary of what a listing shows.
func describeKey(key query.Key) string {
	if key.Search != "" {
		return fmt.Sprintf("Search: %q", key.Search)
	}
	f := key.Filters
	if f.IsZero() {
		return "Popular movies"
	}
	var parts []string
	if len(f.Genres) > 0 {
		parts = append(parts, genreNames(f.Genres))
	}
	if f.Year != nil {
		parts = append(parts, strconv.Itoa(*f.Year))
	}
	if f.Rating != nil {
		parts = append(parts, fmt.Sprintf("rating %g-%g", f.Rating.Min, f.Rating.Max))
	}
	return "Discover: " + strings.Join(parts, " · ")
}

func newMovieCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "movie <id>",
		Short:   "Show details, cast, similar movies and reviews for a movie",
		Example: "  cinescroll movie 27205",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid movie id %q", args[0])
			}
			return runMovie(cmd.OutOrStdout(), id)
		},
	}
}

// movieView is everything shown for one movie.
type movieView struct {
	details *tmdb.MovieDetails
	credits *tmdb.Credits
	similar *tmdb.MoviePage
	reviews *tmdb.ReviewPage
}

// detailsSource provides the lookups behind a movie's detail view.
type detailsSource interface {
	Movie(ctx context.Context, id int) (*tmdb.MovieDetails, error)
	Credits(ctx context.Context, id int) (*tmdb.Credits, error)
	Similar(ctx context.Context, id int) (*tmdb.MoviePage, error)
	Reviews(ctx context.Context, id, page int) (*tmdb.ReviewPage, error)
}

// fetchMovieView loads the four parts of a detail view concurrently. Only
// the details themselves are required; the other parts are best-effort.
func fetchMovieView(ctx context.Context, src detailsSource, id int, logger *slog.Logger) (*movieView, error) {
	var v movieView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := src.Movie(gctx, id)
		v.details = d
		return err
	})
	g.Go(func() error {
		c, err := src.Credits(gctx, id)
		if err != nil {
			logger.Warn("credits unavailable", slog.Int("movie_id", id), slog.String("error", err.Error()))
		}
		v.credits = c
		return nil
	})
	g.Go(func() error {
		s, err := src.Similar(gctx, id)
		if err != nil {
			logger.Warn("similar movies unavailable", slog.Int("movie_id", id), slog.String("error", err.Error()))
		}
		v.similar = s
		return nil
	})
	g.Go(func() error {
		r, err := src.Reviews(gctx, id, 1)
		if err != nil {
			logger.Warn("reviews unavailable", slog.Int("movie_id", id), slog.String("error", err.Error()))
		}
		v.reviews = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &v, nil
}

func runMovie(out io.Writer, id int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg.App.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := initCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	v, err := fetchMovieView(ctx, cat.client, id, logger)
	if err != nil {
		return loadFailure(logger, err)
	}
	fmt.Fprint(out, renderMovieView(v, 0, tmdb.ParseImageSize(cfg.Feed.ImageSize)))
	return nil
}

// renderMovieView formats a detail view as plain text wrapped at width
// (0 = no wrapping).
func renderMovieView(v *movieView, width int, size tmdb.ImageSize) string {
	d := v.details
	var b strings.Builder

	title := d.Title
	if y := d.Year(); y > 0 {
		title = fmt.Sprintf("%s (%d)", title, y)
	}
	b.WriteString(styleHeader.Render(title) + "\n")
	if d.Tagline != "" {
		b.WriteString(styleDim.Render(d.Tagline) + "\n")
	}

	facts := []string{styleRating.Render(fmt.Sprintf("★ %.1f", d.VoteAverage)) +
		fmt.Sprintf(" (%s votes)", humanize.Comma(int64(d.VoteCount)))}
	if d.Runtime > 0 {
		facts = append(facts, fmt.Sprintf("%dh %02dm", d.Runtime/60, d.Runtime%60))
	}
	if d.ReleaseDate != "" {
		facts = append(facts, d.ReleaseDate)
	}
	if d.Status != "" {
		facts = append(facts, d.Status)
	}
	b.WriteString(strings.Join(facts, " · ") + "\n")

	if len(d.Genres) > 0 {
		names := make([]string, len(d.Genres))
		for i, g := range d.Genres {
			names[i] = g.Name
		}
		b.WriteString("Genres: " + strings.Join(names, ", ") + "\n")
	}
	if d.Budget > 0 || d.Revenue > 0 {
		b.WriteString(fmt.Sprintf("Budget: $%s  Revenue: $%s\n",
			humanize.Comma(d.Budget), humanize.Comma(d.Revenue)))
	}
	if len(d.ProductionCompanies) > 0 {
		names := make([]string, len(d.ProductionCompanies))
		for i, c := range d.ProductionCompanies {
			names[i] = c.Name
		}
		b.WriteString("Studios: " + strings.Join(names, ", ") + "\n")
	}
	b.WriteString("Poster: " + tmdb.PosterURL(d.PosterPath, size) + "\n")

	if d.Overview != "" {
		b.WriteString("\n" + wrap(d.Overview, width) + "\n")
	}

	if c := v.credits; c != nil {
		if dirs := c.Directors(); len(dirs) > 0 {
			names := make([]string, len(dirs))
			for i, m := range dirs {
				names[i] = m.Name
			}
			b.WriteString("\n" + styleInfo.Render("Director") + "\n  " + strings.Join(names, ", ") + "\n")
		}
		if cast := c.TopCast(10); len(cast) > 0 {
			b.WriteString("\n" + styleInfo.Render("Cast") + "\n")
			for _, m := range cast {
				line := "  " + m.Name
				if m.Character != "" {
					line += styleDim.Render(" as " + m.Character)
				}
				b.WriteString(line + "\n")
			}
		}
	}

	if s := v.similar; s != nil && len(s.Results) > 0 {
		b.WriteString("\n" + styleInfo.Render("Similar") + "\n")
		for _, m := range s.Results[:min(len(s.Results), 5)] {
			line := "  " + m.Title
			if y := m.Year(); y > 0 {
				line += fmt.Sprintf(" (%d)", y)
			}
			b.WriteString(line + styleDim.Render(fmt.Sprintf("  #%d", m.ID)) + "\n")
		}
	}

	if r := v.reviews; r != nil && len(r.Results) > 0 {
		b.WriteString("\n" + styleInfo.Render(fmt.Sprintf("Reviews (%d)", r.TotalResults)) + "\n")
		for _, rev := range r.Results[:min(len(r.Results), 3)] {
			head := "  " + rev.Author
			if rev.AuthorDetails.Rating != nil {
				head += styleRating.Render(fmt.Sprintf(" ★ %.0f", *rev.AuthorDetails.Rating))
			}
			b.WriteString(head + "\n")
			b.WriteString(indent(wrap(truncate(rev.Content, 400), max(width-4, 0)), "    ") + "\n")
		}
	}
	return b.String()
}

// wrap breaks s into lines of at most width runes at word boundaries.
func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	var (
		b       strings.Builder
		lineLen int
	)
	for _, word := range strings.Fields(s) {
		n := len([]rune(word))
		if lineLen > 0 && lineLen+1+n > width {
			b.WriteByte('\n')
			lineLen = 0
		} else if lineLen > 0 {
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(word)
		lineLen += n
	}
	return b.String()
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}
