package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cinescroll",
		Short: "Browse The Movie Database from the terminal",
		Long: "CineScroll is a movie catalog browser backed by The Movie Database (TMDb).\n" +
			"It offers an interactive browser with debounced search, genre, year and rating\n" +
			"filters and infinite scroll, plus a JSON API, an MCP server and a Telegram bot.",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/cinescroll.yaml", "path to configuration file (.yaml or .toml)")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(
		newVersionCmd(),
		newBrowseCmd(),
		newListCmd(),
		newMovieCmd(),
		newServeCmd(),
		newMCPServeCmd(),
		newBotCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CineScroll v%s\n", version)
		},
	}
}
