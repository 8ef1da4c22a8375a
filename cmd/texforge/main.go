// texforge submits LaTeX projects to a remote compile service (CLSI).
//
// It gathers the project tree from the local disk, an S3 bucket or a file
// server, sends open documents inline and everything else by URL, and
// prints the compiler's errors and warnings.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/texforge/texforge/internal/config"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "texforge",
	Short:         "Remote LaTeX compile client",
	Long:          `texforge compiles multi-file LaTeX projects on a remote CLSI and reports the log's diagnostics`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		colorFlag, _ := cmd.Flags().GetString("color")
		switch colorFlag {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		case "auto":
			color.NoColor = !isTerminal(os.Stderr)
		default:
			return fmt.Errorf("invalid --color %q (auto|on|off)", colorFlag)
		}

		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		return logging.Init(logging.Config{Level: level, Format: format})
	},
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(setMainCmd)
	rootCmd.AddCommand(parseLogCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error), LOG_LEVEL when unset")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console|json), LOG_FORMAT when unset")

	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		}
		os.Exit(1)
	}
}

// applyLogConfig re-initializes logging from the environment
// configuration for settings the user did not pass as flags. The CLI keeps
// its quieter flag defaults unless LOG_LEVEL or LOG_FORMAT is set.
func applyLogConfig(cmd *cobra.Command, cfg *config.Config) error {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	changed := false
	if _, ok := os.LookupEnv("LOG_LEVEL"); ok && !cmd.Flags().Changed("log-level") {
		level, changed = cfg.LogLevel, true
	}
	if _, ok := os.LookupEnv("LOG_FORMAT"); ok && !cmd.Flags().Changed("log-format") {
		format, changed = cfg.LogFormat, true
	}
	if !changed {
		return nil
	}
	return logging.Init(logging.Config{Level: level, Format: format})
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
