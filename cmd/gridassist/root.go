package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/gridassist/internal/config"
	"github.com/ashureev/gridassist/internal/gridservice"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gridassist",
		Short: "Operator assistant for power-grid case studies",
		Long: `gridassist fronts a grid analysis service: operators load a grid case,
inspect its summary statistics and ask the assistant about it.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("grid-url", "", "Grid service base URL (overrides GRIDASSIST_GRID_BASE_URL)")
	root.PersistentFlags().String("grid-transport", "", `Grid service transport, "http" or "grpc"`)
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(), newTUICmd(), newCasesCmd())
	return root
}

// loadConfig reads configuration and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("grid-url"); v != "" {
		cfg.Grid.BaseURL = v
	}
	if v, _ := flags.GetString("grid-transport"); v != "" {
		cfg.Grid.Transport = strings.ToLower(v)
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newGridClient builds the transport selected by cfg.Grid.Transport.
func newGridClient(cfg *config.Config, logger *slog.Logger) (gridservice.Client, error) {
	switch cfg.Grid.Transport {
	case config.TransportGRPC:
		return gridservice.NewGrpcClient(gridservice.GrpcClientConfig{
			Address:        cfg.Grid.GrpcAddr,
			ConnectTimeout: cfg.Grid.ConnectTimeout,
			RequestTimeout: cfg.Grid.RequestTimeout,
		}, logger)
	default:
		return gridservice.NewHTTPClient(gridservice.HTTPClientConfig{
			BaseURL:        cfg.Grid.BaseURL,
			RequestTimeout: cfg.Grid.RequestTimeout,
		}, logger)
	}
}
