package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/logging"
	"github.com/ashureev/gridassist/internal/session"
	"github.com/ashureev/gridassist/internal/tui"
)

func newTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the assistant in the terminal",
		RunE:  runTUI,
	}
	cmd.Flags().String("style", "auto", `Markdown style for assistant replies: "auto", "dark", "light" or "notty"`)
	cmd.Flags().String("log-file", "", "Write logs to this file; the UI owns the terminal, so logs are discarded otherwise")
	return cmd
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.Setup(logOut, logging.FormatText, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grid, err := newGridClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize grid service client: %w", err)
	}
	defer func() {
		if closeErr := grid.Close(); closeErr != nil {
			logger.Warn("Failed to close grid service client", "error", closeErr)
		}
	}()

	cases, _ := gridservice.Catalog(ctx, grid)
	store := session.NewStore()
	defer store.Close()
	coord := session.NewCoordinator(store, grid, session.WithLogger(logger))

	style, _ := cmd.Flags().GetString("style")
	return tui.Run(ctx, coord, tui.Config{Cases: cases, Style: style})
}
