package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/CineScroll/internal/feed"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
)

const (
	unauthorizedMsg = "Sorry, you are not authorized to use this bot."
	loadErrorMsg    = "Error loading movies"
	emptyMsg        = "No movies found"
	noMoreMsg       = "That's all of them."
	noFeedMsg       = "Send a title to search, or /popular to browse."
	resetMsg        = "Search and filters reset. Send a title or /popular to start over."
	helpMsg         = `Send a movie title to search.

/popular - popular movies
/genre <name> - toggle a genre filter
/year <year|all> - filter by release year
/rating <min> <max> - filter by rating (0-10)
/clear - drop all filters
/movie <id> - movie details
/reset - start over`

	moreCallback = "more"
)

// handleMessage processes an incoming text message.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	b.logger.Debug("received message",
		slog.Int64("user_id", userID),
	)

	if !b.sessions.isAllowed(userID) {
		b.sendText(chatID, unauthorizedMsg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	cmd, err := parseCommand(text)
	if err != nil {
		b.sendText(chatID, strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
		return
	}

	switch cmd.kind {
	case cmdHelp:
		b.sendText(chatID, helpMsg)
		return
	case cmdReset:
		b.sessions.reset(userID)
		b.sendText(chatID, resetMsg)
		return
	case cmdMovie:
		b.sendDetails(ctx, chatID, cmd.id)
		return
	}

	// Show typing indicator.
	b.api.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)) //nolint:errcheck // best-effort typing indicator

	s := b.sessions.get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cmd.apply(s); err != nil {
		b.sendText(chatID, err.Error())
		return
	}
	b.restartFeed(s)

	if err := s.feed.Load(ctx); err != nil {
		b.logger.Error("feed load failed",
			slog.Int64("user_id", userID),
			slog.String("key", s.key().String()),
			slog.String("error", err.Error()),
		)
		// "More" retries the failed first page.
		b.sendMore(chatID, loadErrorMsg)
		return
	}
	b.sendListing(chatID, s)
}

// restartFeed points the session's feed at its current key and rewinds it
// to page one. Must be called with s.mu held.
func (b *Bot) restartFeed(s *session) {
	key := s.key()
	if s.feed == nil || !s.feed.SetKey(key) {
		// Same key asked for again: list it from the top. Resolved pages
		// come from the page cache.
		s.feed = feed.New(b.pages, key, b.logger)
	}
	s.shown = 0
}

// handleCallback processes inline keyboard callback queries.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	b.logger.Debug("received callback",
		slog.Int64("user_id", userID),
		slog.String("data", cq.Data),
	)

	// Acknowledge the callback immediately.
	b.api.Send(tgbotapi.NewCallback(cq.ID, "")) //nolint:errcheck // best-effort ack

	if !b.sessions.isAllowed(userID) || cq.Data != moreCallback {
		return
	}

	// Remove the button from the message it was attached to.
	removeKB := tgbotapi.NewEditMessageReplyMarkup(chatID, cq.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	b.api.Send(removeKB) //nolint:errcheck

	s := b.sessions.get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.feed == nil {
		b.sendText(chatID, noFeedMsg)
		return
	}

	err := s.feed.FetchNextPage(ctx)
	if errors.Is(err, feed.ErrBlocked) {
		// "More" after a failure retries the page that failed.
		err = s.feed.Retry(ctx)
	}
	switch {
	case err == nil:
		b.sendListing(chatID, s)
	case errors.Is(err, feed.ErrNoMorePages):
		b.sendText(chatID, noMoreMsg)
	case errors.Is(err, feed.ErrFetchInProgress), errors.Is(err, feed.ErrStale):
	default:
		b.logger.Error("next page failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		b.sendMore(chatID, loadErrorMsg)
	}
}

// sendListing sends the movies the user has not seen yet, with a "More"
// button while further pages exist. Must be called with s.mu held.
func (b *Bot) sendListing(chatID int64, s *session) {
	snap := s.feed.Snapshot()
	if len(snap.Movies) == 0 {
		b.sendText(chatID, emptyMsg)
		return
	}
	if s.shown >= len(snap.Movies) {
		b.sendText(chatID, noMoreMsg)
		return
	}

	text := FormatMovieList(snap.Movies[s.shown:], s.shown+1)
	if s.shown == 0 {
		text = FormatBold(describeKey(s)) + "\n\n" + text
	}
	s.shown = len(snap.Movies)

	if snap.HasNextPage {
		b.sendMarkdownWithMore(chatID, text)
		return
	}
	b.sendMarkdown(chatID, text)
}

func (b *Bot) sendDetails(ctx context.Context, chatID int64, id int) {
	details, err := b.catalog.Movie(ctx, id)
	if err != nil {
		b.logger.Error("movie details failed", slog.Int("movie_id", id), slog.String("error", err.Error()))
		b.sendText(chatID, loadErrorMsg)
		return
	}
	credits, err := b.catalog.Credits(ctx, id)
	if err != nil {
		b.logger.Warn("movie credits failed", slog.Int("movie_id", id), slog.String("error", err.Error()))
		credits = nil
	}

	caption := FormatDetails(details, credits)
	if details.PosterPath != "" {
		b.sendPoster(chatID, details.PosterPath, details.Title)
	}
	b.sendMarkdown(chatID, caption)
}

// sendMarkdown sends MarkdownV2 text, falling back to plain text.
func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send markdown, retrying plain",
			slog.String("error", err.Error()),
		)
		b.sendText(chatID, stripMdV2(text))
	}
}

func (b *Bot) sendMarkdownWithMore(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = moreKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send markdown, retrying plain",
			slog.String("error", err.Error()),
		)
		b.sendMore(chatID, stripMdV2(text))
	}
}

// sendMore sends plain text with a "More" button.
func (b *Bot) sendMore(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = moreKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message with keyboard",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// sendText sends a plain text message (no parse mode).
func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// sendPoster sends a movie poster photo with a caption.
func (b *Bot) sendPoster(chatID int64, posterPath, caption string) {
	url := tmdb.ImageURL(posterPath, b.imageSize)
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Debug("failed to send poster",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

func moreKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("More", moreCallback)),
	)
}

// describeKey is the heading of a fresh listing.
func describeKey(s *session) string {
	key := s.key()
	if key.Search != "" {
		return fmt.Sprintf("Results for %q", key.Search)
	}
	if key.Filters.IsZero() {
		return "Popular movies"
	}
	return "Movies: " + DescribeFilters(key.Filters)
}
