package main

import (
	"path/filepath"

	"github.com/texforge/texforge/internal/config"
)

// projectConfig reads the environment configuration for the project in
// dir, or PROJECT_PATH when dir is empty. A relative SETTINGS_FILE is
// resolved inside the project directory so every command reads and writes
// the same settings.
func projectConfig(dir string) *config.Config {
	cfg := config.Parse()
	if dir != "" {
		cfg.ProjectPath = dir
	}
	if !filepath.IsAbs(cfg.SettingsFile) {
		cfg.SettingsFile = filepath.Join(cfg.ProjectPath, cfg.SettingsFile)
	}
	return cfg
}

// argOr returns args[i], or "" when it was not given.
func argOr(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
