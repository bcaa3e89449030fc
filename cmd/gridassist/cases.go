package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/logging"
)

func newCasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List the grid cases the service can load",
		RunE:  runCases,
	}
	cmd.Flags().Bool("json", false, "Print the catalog as JSON")
	return cmd
}

type casesOutput struct {
	Source  string        `json:"source"`
	Default string        `json:"default"`
	Cases   []domain.Case `json:"cases"`
}

func runCases(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.Setup(os.Stderr, logging.FormatText, cfg.SlogLevel())

	grid, err := newGridClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize grid service client: %w", err)
	}
	defer func() {
		if closeErr := grid.Close(); closeErr != nil {
			logger.Warn("Failed to close grid service client", "error", closeErr)
		}
	}()

	cases, fromService := gridservice.Catalog(cmd.Context(), grid)
	out := casesOutput{Source: "builtin", Default: domain.DefaultCaseID, Cases: cases}
	if fromService {
		out.Source = "service"
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return printCases(cmd.OutOrStdout(), out, asJSON)
}

func printCases(w io.Writer, out casesOutput, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\t")
	for _, c := range out.Cases {
		marker := ""
		if c.ID == out.Default {
			marker = "(default)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Title, marker)
	}
	fmt.Fprintf(tw, "\nsource: %s\n", out.Source)
	return tw.Flush()
}
