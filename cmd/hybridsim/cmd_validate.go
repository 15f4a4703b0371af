package main

import (
	"errors"
	"fmt"

	"github.com/nvandessel/hybridsim/internal/config"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration without running it",
		Long: `Load the configuration (defaults, then --config, then HYBRIDSIM_*
environment variables) and report every invalid field.

Examples:
  hybridsim validate --config sim.yaml
  hybridsim validate --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			problems := validationProblems(cfg.Validate())

			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{
					"valid":   len(problems) == 0,
					"variant": cfg.Variant,
					"errors":  problems,
				}); err != nil {
					return err
				}
			} else if len(problems) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s, %d agents, %d days)\n", cfg.Variant, cfg.Agents, cfg.Horizon)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration has %d problem(s):\n", len(problems))
				for _, p := range problems {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
				}
			}

			if len(problems) > 0 {
				return config.ErrInvalidConfig
			}
			return nil
		},
	}
}

// validationProblems flattens a joined validation error into messages.
func validationProblems(err error) []string {
	if err == nil {
		return []string{}
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, validationProblems(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
