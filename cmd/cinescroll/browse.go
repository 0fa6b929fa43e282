package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vadimtrunov/CineScroll/internal/debounce"
	"github.com/vadimtrunov/CineScroll/internal/feed"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
	"github.com/vadimtrunov/CineScroll/internal/query"
)

// newBrowseCmd returns the "browse" subcommand, the interactive catalog.
func newBrowseCmd() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse movies interactively",
		Long: "Browse the catalog in a full-screen terminal UI. Typing searches by title once\n" +
			"input pauses; g, y/Y, r and c change genre, year and rating filters.\n" +
			"Scrolling near the end of the list loads the next page.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBrowse(logFile)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file (logs are discarded otherwise)")
	return cmd
}

func runBrowse(logFile string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupFileLogger(cfg.App.LogLevel, logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := initCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	var p *tea.Program
	deb := debounce.New(cfg.Feed.Debounce.Std(), func(text string) {
		p.Send(searchSettledMsg{text: text})
	})
	defer deb.Stop()

	f := feed.New(cat.pages, query.NewKey("", query.FilterState{}), logger)
	m := newBrowseModel(ctx, f, cat.client, deb, tmdb.ParseImageSize(cfg.Feed.ImageSize), logger)
	p = tea.NewProgram(m, tea.WithAltScreen())

	// Bridge OS signal cancellation into the Bubble Tea event loop.
	go func() {
		<-ctx.Done()
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	return nil
}

// searchInput receives raw keystroke text and later emits the settled value
// as a searchSettledMsg.
type searchInput interface {
	Push(text string)
	Flush() bool
}

// searchSettledMsg carries the search text once typing has paused.
type searchSettledMsg struct {
	text string
}

// pageLoadedMsg reports the end of a page fetch for key.
type pageLoadedMsg struct {
	key  query.Key
	next bool
	err  error
}

// detailsLoadedMsg carries the detail view for a movie.
type detailsLoadedMsg struct {
	id   int
	view *movieView
	err  error
}

type focusArea int

const (
	focusList focusArea = iota
	focusSearch
)

type browseMode int

const (
	modeList browseMode = iota
	modeDetails
)

// prefetchDistance is how close to the end of the list the cursor must be
// before the next page is requested.
const prefetchDistance = 3

// ratingSteps are the minimum ratings cycled by the "r" key; 0 means none.
var ratingSteps = []float64{0, 5, 6, 7, 8}

// browseModel is the Bubble Tea model for the interactive catalog.
type browseModel struct {
	ctx       context.Context
	feed      *feed.Feed
	details   detailsSource
	search    searchInput
	imageSize tmdb.ImageSize
	logger    *slog.Logger

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	focus       focusArea
	mode        browseMode
	settled     string
	filters     query.FilterState
	genreIdx    int // index into tmdb.DefaultGenres, -1 = any genre
	ratingIdx   int
	snap        feed.Snapshot
	cursor      int
	offset      int
	loadingMore bool

	detail        *movieView
	detailErr     error
	detailLoading bool

	width  int
	height int
	ready  bool
}

func newBrowseModel(
	ctx context.Context, f *feed.Feed, details detailsSource, search searchInput,
	size tmdb.ImageSize, logger *slog.Logger,
) browseModel {
	ti := textinput.New()
	ti.Placeholder = "Search movies..."
	ti.Prompt = "🔍 "
	ti.CharLimit = 200

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleInfo

	key := f.Key()
	return browseModel{
		ctx:       ctx,
		feed:      f,
		details:   details,
		search:    search,
		imageSize: size,
		logger:    logger,
		input:     ti,
		spinner:   s,
		settled:   key.Search,
		filters:   key.Filters,
		genreIdx:  -1,
		snap:      f.Snapshot(),
	}
}

// Init starts the first page load and the spinner.
func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

// Update handles incoming messages and user input.
func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case searchSettledMsg:
		m.settled = strings.TrimSpace(msg.text)
		cmd := m.applyKey()
		return m, cmd

	case pageLoadedMsg:
		return m.handlePageLoaded(msg)

	case detailsLoadedMsg:
		m.handleDetailsLoaded(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *browseModel) handleResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.input.Width = max(m.width-6, 10)
	vpHeight := max(m.height-3, 1)
	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	if m.detail != nil {
		m.viewport.SetContent(renderMovieView(m.detail, m.width, m.imageSize))
	}
	m.clampOffset()
}

// listHeight is the number of movie rows that fit on screen.
func (m browseModel) listHeight() int {
	if m.height == 0 {
		return 20
	}
	return max(m.height-7, 1)
}

func (m browseModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.mode == modeDetails {
		return m.handleDetailsKey(msg)
	}
	if m.focus == focusSearch {
		return m.handleSearchKey(msg)
	}
	return m.handleListKey(msg)
}

func (m browseModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "tab":
		m.focus = focusList
		m.input.Blur()
		return m, nil
	case "enter":
		m.focus = focusList
		m.input.Blur()
		search := m.search
		return m, func() tea.Msg {
			search.Flush()
			return nil
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.search.Push(after)
	}
	return m, cmd
}

func (m browseModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/", "tab":
		m.focus = focusSearch
		cmd := m.input.Focus()
		return m, cmd
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-m.listHeight())
	case "pgdown":
		m.moveCursor(m.listHeight())
	case "home":
		m.moveCursor(-len(m.snap.Movies))
	case "end":
		m.moveCursor(len(m.snap.Movies))
	case "enter":
		return m.openDetails()
	case "g", "y", "Y", "r", "c":
		m.changeFilter(msg.String())
		cmd := m.applyKey()
		return m, cmd
	case "R":
		cmd := m.retryCmd()
		return m, cmd
	default:
		return m, nil
	}
	cmd := m.maybeFetchMore()
	return m, cmd
}

func (m browseModel) handleDetailsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace", "q":
		m.mode = modeList
		m.detail, m.detailErr, m.detailLoading = nil, nil, false
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *browseModel) moveCursor(delta int) {
	n := len(m.snap.Movies)
	if n == 0 {
		m.cursor, m.offset = 0, 0
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), n-1)
	m.clampOffset()
}

// clampOffset scrolls the list so the cursor stays visible.
func (m *browseModel) clampOffset() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = max(m.offset, 0)
}

// changeFilter applies one of the filter keys to the filter state.
func (m *browseModel) changeFilter(key string) {
	switch key {
	case "g":
		m.cycleGenre()
	case "y":
		m.shiftYear(-1)
	case "Y":
		m.shiftYear(1)
	case "r":
		m.cycleRating()
	case "c":
		m.genreIdx, m.ratingIdx = -1, 0
		m.filters = query.FilterState{}
	}
}

func (m *browseModel) cycleGenre() {
	m.genreIdx++
	if m.genreIdx >= len(tmdb.DefaultGenres) {
		m.genreIdx = -1
	}
	f := m.filters.Normalized()
	f.Genres = nil
	if m.genreIdx >= 0 {
		f = f.ToggleGenre(tmdb.DefaultGenres[m.genreIdx].ID)
	}
	m.filters = f
}

// shiftYear moves the year filter by delta, starting from the current year
// when no year is selected.
func (m *browseModel) shiftYear(delta int) {
	year := time.Now().Year()
	if m.filters.Year != nil {
		year = *m.filters.Year + delta
	}
	if year < 1870 || year > time.Now().Year()+5 {
		return
	}
	m.filters = m.filters.WithYear(year)
}

func (m *browseModel) cycleRating() {
	m.ratingIdx = (m.ratingIdx + 1) % len(ratingSteps)
	m.filters = m.filters.WithRating(ratingSteps[m.ratingIdx], query.MaxRating)
}

// applyKey points the feed at the current search and filters. A changed
// key resets the list and loads its first page.
func (m *browseModel) applyKey() tea.Cmd {
	key := query.NewKey(m.settled, m.filters)
	if !m.feed.SetKey(key) {
		return nil
	}
	m.logger.Debug("listing key changed", slog.String("key", key.String()))
	m.cursor, m.offset = 0, 0
	m.loadingMore = false
	m.snap = m.feed.Snapshot()
	return m.loadCmd()
}

func (m browseModel) loadCmd() tea.Cmd {
	f, ctx := m.feed, m.ctx
	key := f.Key()
	return func() tea.Msg {
		return pageLoadedMsg{key: key, err: f.Load(ctx)}
	}
}

// maybeFetchMore requests the next page once the cursor nears the end of
// the accumulated list.
func (m *browseModel) maybeFetchMore() tea.Cmd {
	if m.loadingMore || !m.snap.HasNextPage || m.snap.Status == feed.StatusError {
		return nil
	}
	if m.cursor < len(m.snap.Movies)-prefetchDistance {
		return nil
	}
	m.loadingMore = true
	f, ctx := m.feed, m.ctx
	key := f.Key()
	return func() tea.Msg {
		return pageLoadedMsg{key: key, next: true, err: f.FetchNextPage(ctx)}
	}
}

func (m *browseModel) retryCmd() tea.Cmd {
	if m.snap.Status != feed.StatusError {
		return nil
	}
	m.loadingMore = m.snap.Pages > 0
	f, ctx := m.feed, m.ctx
	key := f.Key()
	next := m.loadingMore
	return func() tea.Msg {
		return pageLoadedMsg{key: key, next: next, err: f.Retry(ctx)}
	}
}

func (m browseModel) handlePageLoaded(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.next {
		m.loadingMore = false
	}
	if errors.Is(msg.err, feed.ErrStale) || errors.Is(msg.err, feed.ErrFetchInProgress) {
		return m, nil
	}
	if !msg.key.Equal(m.feed.Key()) {
		return m, nil
	}
	m.snap = m.feed.Snapshot()
	if n := len(m.snap.Movies); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	m.clampOffset()
	// A short first page can leave the cursor already inside the prefetch window.
	cmd := m.maybeFetchMore()
	return m, cmd
}

func (m browseModel) openDetails() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.snap.Movies) {
		return m, nil
	}
	id := m.snap.Movies[m.cursor].ID
	m.mode = modeDetails
	m.detail, m.detailErr = nil, nil
	m.detailLoading = true

	ctx, src, logger := m.ctx, m.details, m.logger
	return m, func() tea.Msg {
		v, err := fetchMovieView(ctx, src, id, logger)
		return detailsLoadedMsg{id: id, view: v, err: err}
	}
}

func (m *browseModel) handleDetailsLoaded(msg detailsLoadedMsg) {
	if m.mode != modeDetails || !m.detailLoading {
		return
	}
	if m.cursor >= len(m.snap.Movies) || m.snap.Movies[m.cursor].ID != msg.id {
		return
	}
	m.detailLoading = false
	m.detail, m.detailErr = msg.view, msg.err
	if msg.err != nil {
		m.logger.Warn("movie details failed", slog.Int("movie_id", msg.id), slog.String("error", msg.err.Error()))
	}
	if m.detail != nil && m.ready {
		m.viewport.SetContent(renderMovieView(m.detail, m.width, m.imageSize))
		m.viewport.GotoTop()
	}
}

// View renders the current screen.
func (m browseModel) View() string {
	if m.mode == modeDetails {
		return m.detailsView()
	}

	var b strings.Builder
	b.WriteString(styleHeader.UnsetMarginBottom().Render("CineScroll") + "  " + styleDim.Render(describeKey(m.feed.Key())) + "\n")
	b.WriteString(m.input.View() + "\n")
	b.WriteString(m.filterBar() + "\n\n")
	b.WriteString(m.listView())
	b.WriteString(m.statusLine() + "\n")
	b.WriteString(styleDim.Render(m.helpLine()))
	return b.String()
}

func (m browseModel) filterBar() string {
	genre := "any"
	if len(m.filters.Genres) > 0 {
		genre = genreNames(m.filters.Genres)
	}
	year := "any"
	if m.filters.Year != nil {
		year = fmt.Sprint(*m.filters.Year)
	}
	rating := "any"
	if m.filters.Rating != nil {
		rating = fmt.Sprintf("%g+", m.filters.Rating.Min)
	}
	bar := fmt.Sprintf("Genre: %s  Year: %s  Rating: %s", genre, year, rating)
	if m.settled != "" && !m.filters.IsZero() {
		bar += "  (filters apply when search is empty)"
	}
	return styleDim.Render(bar)
}

func (m browseModel) listView() string {
	var b strings.Builder
	h := m.listHeight()
	end := min(m.offset+h, len(m.snap.Movies))
	for i := m.offset; i < end; i++ {
		mv := m.snap.Movies[i]
		line := fmt.Sprintf("%3d. %s", i+1, mv.Title)
		if y := mv.Year(); y > 0 {
			line += fmt.Sprintf(" (%d)", y)
		}
		rating := styleRating.Render(fmt.Sprintf(" ★ %.1f", mv.VoteAverage))
		if i == m.cursor && m.focus == focusList {
			b.WriteString(styleSelected.Render("> "+line) + rating + "\n")
		} else {
			b.WriteString("  " + line + rating + "\n")
		}
	}
	for i := end - m.offset; i < h; i++ {
		b.WriteString("\n")
	}
	return b.String()
}

func (m browseModel) statusLine() string {
	s := m.snap
	switch {
	case s.Status == feed.StatusError:
		return styleError.Render(loadErrorMessage) + styleDim.Render("  (R to retry)")
	case s.Status == feed.StatusLoading && len(s.Movies) == 0:
		return m.spinner.View() + " Loading..."
	case s.Status == feed.StatusSuccess && len(s.Movies) == 0:
		return styleDim.Render("No movies found")
	case m.loadingMore:
		return m.spinner.View() + fmt.Sprintf(" Loading page %d...", s.Pages+1)
	case len(s.Movies) > 0 && !s.HasNextPage:
		return styleDim.Render(fmt.Sprintf("%d movies, end of results", len(s.Movies)))
	case len(s.Movies) > 0:
		return styleDim.Render(fmt.Sprintf("%d movies, page %d of %d", len(s.Movies), s.Pages, s.TotalPages))
	}
	return ""
}

func (m browseModel) helpLine() string {
	if m.focus == focusSearch {
		return "enter search now · esc/tab back to list · ctrl+c quit"
	}
	return "↑/↓ move · enter details · / search · g genre · y/Y year · r rating · c clear · q quit"
}

func (m browseModel) detailsView() string {
	switch {
	case m.detailLoading:
		return m.spinner.View() + " Loading details..."
	case m.detailErr != nil:
		return styleError.Render(loadErrorMessage) + "\n\n" + styleDim.Render("esc back")
	case m.detail == nil:
		return ""
	case !m.ready:
		return renderMovieView(m.detail, 0, m.imageSize)
	}
	return m.viewport.View() + "\n" + styleDim.Render("↑/↓ scroll · esc back")
}
