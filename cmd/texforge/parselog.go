package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/texforge/texforge/pkg/logparser"
)

var parseLogCmd = &cobra.Command{
	Use:   "parse-log [flags] file",
	Short: "Print the errors and warnings of a LaTeX log",
	Long:  `Parse-log reads a compiler log ("-" for stdin) and prints its diagnostics`,
	Args:  cobra.ExactArgs(1),
	RunE:  runParseLog,
}

func init() {
	parseLogCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runParseLog(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	var raw []byte
	if args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	result := logparser.Parse(string(raw))

	switch format {
	case "pretty":
		printDiagnostics(cmd.OutOrStdout(), result)
		return nil
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
