package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vadimtrunov/CineScroll/internal/feed"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
)

// Catalog provides the detail lookups behind /movie.
type Catalog interface {
	Movie(ctx context.Context, id int) (*tmdb.MovieDetails, error)
	Credits(ctx context.Context, id int) (*tmdb.Credits, error)
}

// sender is the part of the Telegram API the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot is the Telegram frontend for CineScroll. Each user gets an
// independent listing feed.
type Bot struct {
	api       sender
	poller    *tgbotapi.BotAPI
	sessions  *sessionManager
	pages     feed.Loader
	catalog   Catalog
	imageSize tmdb.ImageSize
	logger    *slog.Logger
}

// Options configures a Bot.
type Options struct {
	AllowedUserIDs []int64
	ImageSize      tmdb.ImageSize
}

// New creates a new Telegram Bot.
func New(token string, pages feed.Loader, catalog Catalog, opts Options, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b := newBot(api, pages, catalog, opts, logger)
	b.poller = api
	return b, nil
}

func newBot(api sender, pages feed.Loader, catalog Catalog, opts Options, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.ImageSize
	if size == "" {
		size = tmdb.DefaultImageSize
	}
	return &Bot{
		api:       api,
		sessions:  newSessionManager(opts.AllowedUserIDs),
		pages:     pages,
		catalog:   catalog,
		imageSize: size,
		logger:    logger,
	}
}

// Name returns the frontend name.
func (b *Bot) Name() string { return "telegram" }

// Start starts the long-polling loop. It blocks until ctx is canceled.
func (b *Bot) Start(ctx context.Context) error {
	if b.poller == nil {
		return fmt.Errorf("telegram bot has no API connection")
	}
	b.logger.Info("telegram bot started",
		slog.String("username", b.poller.Self.UserName),
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.poller.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.poller.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate dispatches an incoming Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}
