package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/texforge/texforge/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("texforge"), color.GreenString(version.Version))
		if version.GitCommit != "" {
			fmt.Fprintf(w, "commit: %s\n", version.GitCommit)
		}
		if version.BuildDate != "" {
			fmt.Fprintf(w, "built:  %s\n", version.BuildDate)
		}
		return nil
	},
}
