package main

import (
	"github.com/spf13/cobra"

	"github.com/vadimtrunov/CineScroll/internal/config"
	mcpserver "github.com/vadimtrunov/CineScroll/internal/mcp"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
)

// newMCPServeCmd returns the "mcp-serve" subcommand. It exposes the
// catalog as MCP tools over stdin/stdout; logs go to stderr.
func newMCPServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-serve",
		Short: "Start MCP server over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			logger := config.SetupLogger(cfg.App.LogLevel)

			cat, err := initCatalog(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = cat.Close() }()

			srv := mcpserver.NewServer(mcpserver.Deps{
				Pages:     cat.pages,
				Catalog:   cat.client,
				ImageSize: tmdb.ParseImageSize(cfg.Feed.ImageSize),
				Version:   version,
			}, logger)
			return srv.ServeStdio(cmd.Context())
		},
	}
}
