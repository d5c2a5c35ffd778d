package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deusflow/milnews/internal/config"
	"github.com/deusflow/milnews/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "milnews",
	Short:         "Defense news aggregator",
	Long:          "milnews aggregates defense and security RSS/Atom feeds, serves them as a filterable JSON API and renders cropped thumbnails.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	logger.Init()

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded",
		"feeds", cfg.FeedsConfigPath,
		"freshness", cfg.FreshnessWindow,
		"concurrency", cfg.FetchConcurrency,
		"thumb_dir", cfg.ThumbCacheDir)
	return cfg, nil
}
