package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/engine"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/storage"
)

var (
	cfgFile     string
	verbose     bool
	mode        string
	maxPages    int
	workers     int
	baseURL     string
	dataFile    string
	outputDir   string
	fetcherType string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "imgharvest",
		Short: "Incremental image crawler for news listings",
		Long: `imgharvest pages through a site's news listing, finds articles it has not
processed yet, and downloads the images inside each article into a directory
named after the article title.

Progress is kept in a JSON state file (or MongoDB), so every run only
touches what is new since the previous one.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one crawl pass",
		Long:  "Discover new articles on the listing, download their images and update the state store.",
		Args:  cobra.NoArgs,
		RunE:  runCrawl,
	}

	cmd.Flags().StringVar(&mode, "mode", "", "frontier strategy: sequential or parallel")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "m", 0, "listing pages to scan (sequential: 0 = until an empty page)")
	cmd.Flags().IntVarP(&workers, "workers", "n", 0, "concurrent page and image workers in parallel mode")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "site base URL")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "JSON state file path")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "image download directory")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "page fetcher: http or browser")

	return cmd
}

// runCrawl executes the run command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	pages, images, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer images.Close()
	if pages != fetcher.PageFetcher(images) {
		defer pages.Close()
	}

	store, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	metrics := observability.NewMetrics(logger)

	eng, err := engine.New(cfg, pages, images, store, metrics, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	summary, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
	}

	if summary.NewPosts == 0 {
		fmt.Println("\nNo new articles.")
		return nil
	}

	fmt.Printf("\n✅ Run complete in %s\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("   Run ID:    %s\n", summary.RunID)
	fmt.Printf("   Pages:     %d scanned\n", summary.PagesScanned)
	fmt.Printf("   Articles:  %d new\n", summary.NewPosts)
	fmt.Printf("   Images:    %d found, %d saved, %d failed\n", summary.ImagesFound, summary.ImagesSaved, summary.ImagesFailed)
	fmt.Printf("   Last post: %s\n", summary.LastPost)
	fmt.Printf("   Output:    %s\n", cfg.Storage.DownloadDir)
	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("imgharvest %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Site:\n")
			fmt.Printf("  Base URL:          %s\n", cfg.Site.BaseURL)
			fmt.Printf("  Listing Path:      %s\n", cfg.Site.ListingPath)
			fmt.Printf("  Selector Type:     %s\n", cfg.Site.Selectors.Type)
			fmt.Printf("  Item Selector:     %s\n", cfg.Site.Selectors.Item)
			fmt.Printf("  Content Selector:  %s\n", cfg.Site.ContentSelector)
			fmt.Printf("\nEngine:\n")
			fmt.Printf("  Mode:              %s\n", cfg.Engine.Mode)
			fmt.Printf("  Max Pages:         %d\n", cfg.Engine.MaxPages)
			fmt.Printf("  Page Workers:      %d\n", cfg.Engine.PageWorkers)
			fmt.Printf("  Image Workers:     %d\n", cfg.Engine.ImageWorkers)
			fmt.Printf("  Page Delay:        %s\n", cfg.Engine.PageDelay)
			fmt.Printf("  Image Delay:       %s\n", cfg.Engine.ImageDelay)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Listing Timeout:   %s\n", cfg.Fetcher.ListingTimeout)
			fmt.Printf("  Article Timeout:   %s\n", cfg.Fetcher.ArticleTimeout)
			fmt.Printf("  Image Timeout:     %s\n", cfg.Fetcher.ImageTimeout)
			fmt.Printf("  Chunk Size:        %d bytes\n", cfg.Fetcher.ChunkSize)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  State File:        %s\n", cfg.Storage.Path)
			fmt.Printf("  Download Dir:      %s\n", cfg.Storage.DownloadDir)
			if cfg.Storage.Type == "mongodb" {
				fmt.Printf("  Mongo:             %s/%s (%s)\n", cfg.Storage.Mongo.Database, cfg.Storage.Mongo.Collection, cfg.Storage.Mongo.Key)
			}
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Textfile:          %s\n", cfg.Metrics.Textfile)
			return nil
		},
	}
}

// loadConfig loads the config file and applies run flags on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyCLIOverrides(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger writing to standard output.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	if mode != "" {
		cfg.Engine.Mode = strings.ToLower(mode)
	}
	// 0 is meaningful for sequential mode, so only apply when given
	if cmd.Flags().Changed("max-pages") {
		cfg.Engine.MaxPages = maxPages
	}
	if workers > 0 {
		cfg.Engine.PageWorkers = workers
		cfg.Engine.ImageWorkers = workers
	}
	if baseURL != "" {
		cfg.Site.BaseURL = baseURL
	}
	if dataFile != "" {
		cfg.Storage.Path = dataFile
	}
	if outputDir != "" {
		cfg.Storage.DownloadDir = outputDir
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = strings.ToLower(fetcherType)
	}
}
