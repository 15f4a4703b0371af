package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/hybridsim/internal/store"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a stored run as JSON or CSV",
		Long: `Export the full daily series of a stored run.

The format defaults to the output file's extension (.csv or .json) and to
JSON when writing to stdout.

Examples:
  hybridsim export 3f2a                      # JSON to stdout
  hybridsim export 3f2a --format csv
  hybridsim export 3f2a --output run.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			outputPath, _ := cmd.Flags().GetString("output")

			if format == "" {
				format = store.FormatJSON
				if strings.EqualFold(filepath.Ext(outputPath), ".csv") {
					format = store.FormatCSV
				}
			}
			if format != store.FormatJSON && format != store.FormatCSV {
				return fmt.Errorf("unknown export format %q (want %s or %s)", format, store.FormatJSON, store.FormatCSV)
			}

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := getRun(cmd, s, args[0])
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outputPath != "" {
				if dir := filepath.Dir(outputPath); dir != "." {
					if err := os.MkdirAll(dir, 0755); err != nil {
						return fmt.Errorf("failed to create output directory: %w", err)
					}
				}
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := store.Export(w, run, format); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			if outputPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported run %s to %s\n", run.ID, outputPath)
			}
			return nil
		},
	}

	cmd.Flags().String("format", "", "Output format: json or csv")
	cmd.Flags().String("output", "", "Write to this file instead of stdout")

	return cmd
}
