package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/hybridsim/internal/hybrid"
	"github.com/nvandessel/hybridsim/internal/logging"
	"github.com/nvandessel/hybridsim/internal/sanitize"
	"github.com/nvandessel/hybridsim/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one hybrid simulation and store the result",
		Long: `Run a hybrid simulation from the configuration file (or the defaults),
print a summary and save the daily series to the run store.

Examples:
  hybridsim run                                 # Defaults: vaccination, 100 agents, 30 days
  hybridsim run --config sim.yaml --seed 7
  hybridsim run --variant membership --horizon 60
  hybridsim run --store memory --json           # Do not persist, print JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			noSave, _ := cmd.Flags().GetBool("no-save")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("variant") {
				cfg.Variant, _ = cmd.Flags().GetString("variant")
			}
			if cmd.Flags().Changed("name") {
				cfg.Name, _ = cmd.Flags().GetString("name")
			}
			cfg.Name = sanitize.RunName(cfg.Name)
			if cmd.Flags().Changed("seed") {
				cfg.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if cmd.Flags().Changed("horizon") {
				cfg.Horizon, _ = cmd.Flags().GetInt("horizon")
			}
			if cmd.Flags().Changed("agents") {
				cfg.Agents, _ = cmd.Flags().GetInt("agents")
			}
			if cmd.Flags().Changed("capacity") {
				cfg.Influence.MaxDailyCapacity, _ = cmd.Flags().GetInt("capacity")
			}

			logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)
			days := logging.NewDayLogger(cfg.Logging.Dir, cfg.Logging.Level)
			defer days.Close()

			sim, err := hybrid.New(cfg, hybrid.WithLogger(logger), hybrid.WithDayLogger(days))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			res, err := sim.Run(ctx)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			run, err := res.ToRun(cfg)
			if err != nil {
				return err
			}

			saved := false
			if !noSave {
				s, err := store.NewRunStore(cfg.Store.Backend, cfg.Store.Path)
				if err != nil {
					return fmt.Errorf("failed to open store: %w", err)
				}
				defer s.Close()
				if err := s.SaveRun(ctx, run); err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
				saved = true
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id":         res.RunID,
					"variant":        res.Variant,
					"seed":           cfg.Seed,
					"days":           res.Days(),
					"agents":         cfg.Agents,
					"edges":          res.Edges,
					"components":     res.Components,
					"final_stocks":   namedValues(res.StockNames, res.Stocks[len(res.Stocks)-1]),
					"totals":         namedCounts(res.FlowNames, res.Totals()),
					"final_counts":   res.FinalCounts(),
					"negative_times": len(res.NegativeTimes),
					"elapsed_ms":     res.Elapsed.Milliseconds(),
					"saved":          saved,
				})
			}

			printRunSummary(cmd, res, saved)
			return nil
		},
	}

	cmd.Flags().String("variant", "", "Model variant: vaccination or membership")
	cmd.Flags().String("name", "", "Label stored with the run")
	cmd.Flags().Uint64("seed", 0, "Master seed")
	cmd.Flags().Int("horizon", 0, "Number of simulated days")
	cmd.Flags().Int("agents", 0, "Number of agents")
	cmd.Flags().Int("capacity", 0, "Maximum agents moved per flow per day")
	cmd.Flags().Bool("no-save", false, "Do not write the run to the store")

	return cmd
}

func printRunSummary(cmd *cobra.Command, res *hybrid.Result, saved bool) {
	out := cmd.OutOrStdout()
	final := res.Stocks[len(res.Stocks)-1]

	fmt.Fprintf(out, "Run %s (%s)\n", res.RunID, res.Variant)
	fmt.Fprintf(out, "  Network: %s agents, %s edges, %d component(s)\n",
		humanize.Comma(int64(len(res.FinalStatus))), humanize.Comma(int64(res.Edges)), res.Components)
	fmt.Fprintf(out, "  Simulated %d days in %s\n", res.Days(), res.Elapsed.Round(time.Millisecond))

	fmt.Fprintln(out, "  Final stocks:")
	for i, name := range res.StockNames {
		fmt.Fprintf(out, "    %-14s %s\n", name, humanize.CommafWithDigits(final[i], 2))
	}

	fmt.Fprintln(out, "  Transitions:")
	for i, total := range res.Totals() {
		fmt.Fprintf(out, "    %-14s %s\n", res.FlowNames[i], humanize.Comma(int64(total)))
	}

	counts := res.FinalCounts()
	var parts []string
	for _, label := range res.Labels {
		parts = append(parts, fmt.Sprintf("%s=%d", label, counts[label]))
	}
	fmt.Fprintf(out, "  Agents: %s\n", strings.Join(parts, " "))

	if n := len(res.NegativeTimes); n > 0 {
		fmt.Fprintf(out, "  Warning: %d solver sample(s) with a negative stock\n", n)
	}
	if saved {
		fmt.Fprintf(out, "  Saved. Show with: hybridsim runs show %s\n", shortID(res.RunID))
	}
}

func namedValues(names []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = values[i]
	}
	return out
}

func namedCounts(names []string, counts []int) map[string]int {
	out := make(map[string]int, len(names))
	for i, name := range names {
		out[name] = counts[i]
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
