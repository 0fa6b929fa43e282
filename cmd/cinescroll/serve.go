package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/CineScroll/internal/api"
	"github.com/vadimtrunov/CineScroll/internal/config"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
)

// newServeCmd returns the "serve" subcommand for the JSON API.
func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		Long: "Serve the catalog over HTTP: GET /api/movies lists a page of movies for the\n" +
			"given search or filters, GET /api/movies/{id} returns details.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(addr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	logger := config.SetupLogger(cfg.App.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := initCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	srv := api.NewServer(api.Deps{
		Pages:     cat.pages,
		Catalog:   cat.client,
		ImageSize: tmdb.ParseImageSize(cfg.Feed.ImageSize),
	}, logger)

	logger.Info("api server starting", slog.String("addr", addr))
	return srv.ListenAndServe(ctx, addr)
}
