// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends for the project tree.
const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendRemote = "remote"
)

// Config holds client configuration.
type Config struct {
	// CLSI
	CLSIURL         string // base the client talks to (proxied)
	CLSIPublicURL   string // origin the CLSI puts into log URLs (unproxied)
	HTTPTimeout     time.Duration
	CompileTimeout  time.Duration // 0 = unbounded
	DefaultCompiler string

	// Logging
	LogLevel  string
	LogFormat string

	// Metrics (empty = disabled)
	MetricsAddr string

	// Project tree ("local", "s3" or "remote", default: "local")
	StorageBackend  string
	ProjectPath     string
	PathPrefix      string
	ResourceBaseURL string
	FilesURL        string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3Prefix    string
	S3URLExpiry time.Duration

	// Settings: TOML file, or Postgres when DatabaseURL is set
	SettingsFile string
	DatabaseURL  string
	ProjectID    string
}

// Load reads configuration from environment variables with defaults and
// validates it.
func Load() (*Config, error) {
	cfg := Parse()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads configuration from environment variables without validating
// it. Commands that only need part of the configuration, or that override
// fields from flags before validating, start here.
func Parse() *Config {
	cfg := &Config{
		CLSIURL:         strings.TrimSuffix(envOr("CLSI_URL", "http://localhost:3000"), "/"),
		CLSIPublicURL:   strings.TrimSuffix(envOr("CLSI_PUBLIC_URL", ""), "/"),
		HTTPTimeout:     envDuration("HTTP_TIMEOUT", 0),
		CompileTimeout:  envDuration("COMPILE_TIMEOUT", 0),
		DefaultCompiler: envOr("DEFAULT_COMPILER", "pdflatex"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "console"),
		MetricsAddr:     envOr("METRICS_ADDR", ""),
		StorageBackend:  envOr("STORAGE_BACKEND", BackendLocal),
		ProjectPath:     envOr("PROJECT_PATH", "."),
		PathPrefix:      envOr("PATH_PREFIX", "/workspace"),
		ResourceBaseURL: strings.TrimSuffix(envOr("RESOURCE_BASE_URL", ""), "/"),
		FilesURL:        strings.TrimSuffix(envOr("FILES_URL", ""), "/"),
		S3Endpoint:      envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:        envOr("S3_BUCKET", "texforge"),
		S3AccessKey:     envOr("S3_ACCESS_KEY", ""),
		S3SecretKey:     envOr("S3_SECRET_KEY", ""),
		S3Region:        envOr("S3_REGION", "us-east-1"),
		S3Prefix:        envOr("S3_PREFIX", ""),
		S3URLExpiry:     envDuration("S3_URL_EXPIRY", 15*time.Minute),
		SettingsFile:    envOr("SETTINGS_FILE", ".texforge.toml"),
		DatabaseURL:     envOr("DATABASE_URL", ""),
		ProjectID:       envOr("PROJECT_ID", "default"),
	}

	if cfg.CLSIPublicURL == "" {
		cfg.CLSIPublicURL = cfg.CLSIURL
	}
	return cfg
}

// Validate checks combinations that cannot work.
func (c *Config) Validate() error {
	if c.CLSIURL == "" {
		return fmt.Errorf("CLSI_URL is required")
	}
	switch c.StorageBackend {
	case BackendLocal:
		if c.ResourceBaseURL == "" {
			return fmt.Errorf("RESOURCE_BASE_URL is required for the local backend")
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
	case BackendRemote:
		if c.FilesURL == "" {
			return fmt.Errorf("FILES_URL is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.CompileTimeout < 0 {
		return fmt.Errorf("COMPILE_TIMEOUT must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are seconds.
		if secs, convErr := strconv.Atoi(v); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}
