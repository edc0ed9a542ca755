package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/storage"
)

// statusCmd creates the "status" subcommand.
func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored crawl state",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().StringVar(&dataFile, "data-file", "", "JSON state file path")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dataFile != "" {
		cfg.Storage.Path = dataFile
	}

	// Keep store logs out of the report.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Mongo.Timeout)
	defer cancel()

	store, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	state, err := store.Snapshot(ctx)
	if err != nil {
		return err
	}

	lastPost := "(none)"
	if state.LastPost != nil {
		lastPost = *state.LastPost
	}

	fmt.Printf("Storage:     %s\n", store.Name())
	if store.Name() == "json" {
		fmt.Printf("State File:  %s\n", cfg.Storage.Path)
	}
	fmt.Printf("Last Post:   %s\n", lastPost)
	fmt.Printf("Posts:       %d stored\n", len(state.Posts))
	fmt.Printf("Downloaded:  %d with images\n", state.DownloadedCount())
	return nil
}
