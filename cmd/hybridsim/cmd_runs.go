package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/hybridsim/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored runs",
	}
	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
	)
	return cmd
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs stored.")
				return nil
			}
			fmt.Fprintf(out, "%-8s  %-11s  %-20s  %6s  %7s  %s\n", "ID", "VARIANT", "SEED", "DAYS", "AGENTS", "CREATED")
			for _, r := range runs {
				line := fmt.Sprintf("%-8s  %-11s  %-20d  %6d  %7d  %s",
					shortID(r.ID), r.Variant, r.Seed, r.Horizon, r.Agents, humanize.Time(r.CreatedAt))
				if r.Name != "" {
					line += "  " + r.Name
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored run",
		Long: `Show a stored run. The id may be any unique prefix of the run id.

Examples:
  hybridsim runs show 3f2a
  hybridsim runs show 3f2a --days      # Include the daily table
  hybridsim runs show 3f2a --json      # Full run as JSON`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showDays, _ := cmd.Flags().GetBool("days")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := getRun(cmd, s, args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return store.ExportJSON(cmd.OutOrStdout(), run)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", run.ID)
			if run.Name != "" {
				fmt.Fprintf(out, "  Name:    %s\n", run.Name)
			}
			fmt.Fprintf(out, "  Variant: %s\n", run.Variant)
			fmt.Fprintf(out, "  Seed:    %d\n", run.Seed)
			fmt.Fprintf(out, "  Agents:  %s\n", humanize.Comma(int64(run.Agents)))
			fmt.Fprintf(out, "  Horizon: %d days\n", run.Horizon)
			fmt.Fprintf(out, "  Created: %s (%s)\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.CreatedAt))

			if n := len(run.Days); n > 0 {
				final := run.Days[n-1].Stocks
				fmt.Fprintln(out, "  Final stocks:")
				for i, name := range run.StockNames {
					fmt.Fprintf(out, "    %-14s %s\n", name, humanize.CommafWithDigits(final[i], 2))
				}
			}
			fmt.Fprintln(out, "  Transitions:")
			for i, total := range run.Totals() {
				fmt.Fprintf(out, "    %-14s %s\n", run.FlowNames[i], humanize.Comma(int64(total)))
			}
			if len(run.FinalCounts) > 0 {
				var parts []string
				for label, n := range run.FinalCounts {
					parts = append(parts, fmt.Sprintf("%s=%d", label, n))
				}
				slices.Sort(parts)
				fmt.Fprintf(out, "  Agents:  %s\n", strings.Join(parts, " "))
			}

			if showDays {
				fmt.Fprintln(out)
				return store.ExportCSV(out, run)
			}
			return nil
		},
	}
	cmd.Flags().Bool("days", false, "Print the daily series as CSV")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := store.ResolveID(cmd.Context(), s, args[0])
			if err != nil {
				return fmt.Errorf("run %q: %w", args[0], err)
			}
			if err := s.DeleteRun(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
			return nil
		},
	}
}

// getRun resolves prefix to a stored run.
func getRun(cmd *cobra.Command, s store.RunStore, prefix string) (*store.Run, error) {
	id, err := store.ResolveID(cmd.Context(), s, prefix)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", prefix, err)
	}
	run, err := s.GetRun(cmd.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}
