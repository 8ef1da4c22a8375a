package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/texforge/texforge/internal/settings"
)

var setMainCmd = &cobra.Command{
	Use:   "set-main [flags] path [dir]",
	Short: "Set the project's main file",
	Long: `Set-main stores the file compiled when no open document is a top level
document. The path is taken as shown in the project tree; the tree prefix
(PATH_PREFIX) is removed before it is stored. The setting is written to the
project in dir (default PROJECT_PATH), where compile reads it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSetMain,
}

func runSetMain(cmd *cobra.Command, args []string) error {
	cfg := projectConfig(argOr(args, 1))
	if err := applyLogConfig(cmd, cfg); err != nil {
		return err
	}

	store, err := settings.Open(cfg)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	rel, err := settings.SetMainFile(cmd.Context(), store, args[0], cfg.PathPrefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", outputColor.Sprint("main file:"), rel)
	return nil
}
