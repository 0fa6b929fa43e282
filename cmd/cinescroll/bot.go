package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/CineScroll/internal/config"
	"github.com/vadimtrunov/CineScroll/internal/frontend/telegram"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
)

// newBotCmd returns the "bot" subcommand for running the Telegram bot.
func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Start the Telegram bot",
		Long: "Browse the catalog from Telegram: send a title to search, or use /genre,\n" +
			"/year and /rating to filter. Each chat keeps its own listing.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBot()
		},
	}
}

func runBot() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Telegram == nil {
		return errors.New(
			"telegram configuration is required: set telegram.bot_token in config or CINESCROLL_TELEGRAM_BOT_TOKEN env var",
		)
	}

	logger := config.SetupLogger(cfg.App.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := initCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	bot, err := telegram.New(
		cfg.Telegram.BotToken,
		cat.pages,
		cat.client,
		telegram.Options{
			AllowedUserIDs: cfg.Telegram.AllowedUserIDs,
			ImageSize:      tmdb.ParseImageSize(cfg.Feed.ImageSize),
		},
		logger,
	)
	if err != nil {
		return err
	}

	logger.Info("telegram bot starting")
	return bot.Start(ctx)
}
