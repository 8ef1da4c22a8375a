package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RESOURCE_BASE_URL", "http://files.local/dav/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CLSIURL != "http://localhost:3000" {
		t.Errorf("CLSIURL = %q", cfg.CLSIURL)
	}
	if cfg.CLSIPublicURL != cfg.CLSIURL {
		t.Errorf("CLSIPublicURL should default to CLSIURL, got %q", cfg.CLSIPublicURL)
	}
	if cfg.ResourceBaseURL != "http://files.local/dav" {
		t.Errorf("trailing slash not trimmed: %q", cfg.ResourceBaseURL)
	}
	if cfg.DefaultCompiler != "pdflatex" {
		t.Errorf("DefaultCompiler = %q", cfg.DefaultCompiler)
	}
	if cfg.CompileTimeout != 0 {
		t.Errorf("CompileTimeout = %v, want unbounded", cfg.CompileTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CLSI_URL", "http://proxy/clsi/")
	t.Setenv("CLSI_PUBLIC_URL", "http://clsi:3000")
	t.Setenv("COMPILE_TIMEOUT", "90")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("STORAGE_BACKEND", "remote")
	t.Setenv("FILES_URL", "http://files")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CLSIURL != "http://proxy/clsi" {
		t.Errorf("CLSIURL = %q", cfg.CLSIURL)
	}
	if cfg.CLSIPublicURL != "http://clsi:3000" {
		t.Errorf("CLSIPublicURL = %q", cfg.CLSIPublicURL)
	}
	if cfg.CompileTimeout != 90*time.Second {
		t.Errorf("CompileTimeout = %v", cfg.CompileTimeout)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
}

func TestParse_DoesNotValidate(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("RESOURCE_BASE_URL", "")

	cfg := Parse()
	if cfg.StorageBackend != BackendLocal || cfg.SettingsFile != ".texforge.toml" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if _, err := Load(); err == nil {
		t.Error("Load should reject a local backend without RESOURCE_BASE_URL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"local ok", Config{CLSIURL: "x", StorageBackend: BackendLocal, ResourceBaseURL: "u"}, false},
		{"local missing url", Config{CLSIURL: "x", StorageBackend: BackendLocal}, true},
		{"s3 ok", Config{CLSIURL: "x", StorageBackend: BackendS3, S3Bucket: "b"}, false},
		{"remote missing files url", Config{CLSIURL: "x", StorageBackend: BackendRemote}, true},
		{"unknown backend", Config{CLSIURL: "x", StorageBackend: "smb"}, true},
		{"missing clsi", Config{StorageBackend: BackendS3, S3Bucket: "b"}, true},
		{"negative timeout", Config{CLSIURL: "x", StorageBackend: BackendS3, S3Bucket: "b", CompileTimeout: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
