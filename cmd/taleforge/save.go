package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lamim/taleforge/internal/checkpoint"
	"github.com/lamim/taleforge/internal/config"
	"github.com/lamim/taleforge/internal/writer"
)

func newSaveCommand() *cobra.Command {
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Manage the saved story",
		Long:  "Inspect, export or delete the story snapshot written after every scene",
	}

	saveCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved story",
		Args:  cobra.NoArgs,
		RunE:  showSave,
	})
	saveCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the saved story",
		Args:  cobra.NoArgs,
		RunE:  clearSave,
	})
	saveCmd.AddCommand(&cobra.Command{
		Use:   "export <path.jsonl>",
		Short: "Export the saved story transcript as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSave,
	})

	return saveCmd
}

// openSnapshots loads configuration and opens the configured snapshot store.
// The returned func closes the store.
func openSnapshots(ctx context.Context) (*checkpoint.Manager, *config.Config, *slog.Logger, func(), error) {
	loadEnvFile()

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := openStore(ctx, cfg, secrets)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}

	return checkpoint.NewManager(store, cfg.Storage.Key, cfg.Limits(), logger, nil), cfg, logger, closeFn, nil
}

// showSave displays the saved snapshot
func showSave(cmd *cobra.Command, args []string) error {
	mgr, cfg, _, closeFn, err := openSnapshots(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := mgr.Peek(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read saved story: %w", err)
	}
	if snap == nil {
		fmt.Println("No saved story. Run 'taleforge play' to start one.")
		return nil
	}

	genre := "unknown"
	if snap.Genre != nil {
		genre = snap.Genre.ID
	}
	s := snap.Session()

	fmt.Printf("Saved Story (%s: %s)\n", cfg.Storage.Driver, mgr.Key())
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Title:            %s\n", s.DisplayTitle())
	fmt.Printf("Session ID:       %s\n", snap.SessionID)
	fmt.Printf("Genre:            %s\n", genre)
	fmt.Printf("State:            %s\n", snap.GameState)
	fmt.Printf("Saved At:         %s\n", snap.SavedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Position:         Chapter %d, Scene %d (%.1f%%)\n",
		snap.Chapter, snap.Scene, checkpoint.ProgressPercentage(snap, cfg.Limits()))
	fmt.Printf("History Entries:  %d\n", len(snap.History))
	fmt.Println()

	if snap.Resumable() {
		if err := checkpoint.ValidateSnapshot(snap, cfg.Limits()); err != nil {
			fmt.Printf("This save is damaged and will be discarded on the next start: %v\n", err)
			return nil
		}
		fmt.Println("Run 'taleforge play' to continue this story.")
	} else {
		fmt.Println("This save cannot be resumed; the next start begins a new story.")
	}
	return nil
}

func clearSave(cmd *cobra.Command, args []string) error {
	mgr, _, _, closeFn, err := openSnapshots(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := mgr.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Saved story deleted.")
	return nil
}

func exportSave(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := writer.ValidateExportPath(path); err != nil {
		return err
	}

	mgr, cfg, logger, closeFn, err := openSnapshots(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := mgr.Peek(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read saved story: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("no saved story to export")
	}

	n, err := writer.ExportTranscript(path, snap.Session(), cfg.Limits(), logger)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Printf("Exported %d entries to %s\n", n, path)
	return nil
}
