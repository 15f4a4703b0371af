package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "hybridsim version %s\n", version)
			}
		},
	}
}
