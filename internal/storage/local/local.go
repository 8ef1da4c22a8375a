// Package local provides a project tree backed by the local filesystem.
package local

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/tree"
)

// Config holds local tree settings.
type Config struct {
	// RootPath is the project directory on disk.
	RootPath string
	// Prefix is the tree path the project directory is shown under.
	Prefix string
	// BaseURL is where a file server publishes RootPath to the CLSI.
	BaseURL string
}

// Source implements storage.Source using the local filesystem.
type Source struct {
	rootPath string
	prefix   string
	baseURL  string
}

// New creates a new local tree source.
func New(cfg Config) (*Source, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}
	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &Source{
		rootPath: cfg.RootPath,
		prefix:   strings.TrimSuffix(cfg.Prefix, "/"),
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// Type returns "local".
func (s *Source) Type() string {
	return "local"
}

// Prefix returns the tree path prefix.
func (s *Source) Prefix() string {
	return s.prefix
}

// Root returns the unloaded project root.
func (s *Source) Root(_ context.Context) (*models.FileNode, error) {
	rootPath := s.prefix
	if rootPath == "" {
		rootPath = "/"
	}
	return &models.FileNode{
		Name: filepath.Base(s.rootPath),
		Path: rootPath,
		Type: models.NodeFolder,
	}, nil
}

// Load reads one directory. Dot entries are skipped and symlinks are not
// followed.
func (s *Source) Load(ctx context.Context, dir *models.FileNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(s.FullPath(dir.Path))
	if err != nil {
		metrics.RecordTreeLoad(s.Type(), false)
		return fmt.Errorf("read dir %s: %w", dir.Path, err)
	}

	children := make([]*models.FileNode, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		node := &models.FileNode{
			Name:    entry.Name(),
			Path:    tree.BuildChildPath(dir.Path, entry.Name()),
			ModTime: info.ModTime(),
		}
		switch {
		case info.IsDir():
			node.Type = models.NodeFolder
		case info.Mode().IsRegular():
			node.Type = models.NodeFile
			node.Size = info.Size()
		default:
			continue
		}
		children = append(children, node)
	}

	dir.Children = children
	dir.Loaded = true
	metrics.RecordTreeLoad(s.Type(), true)
	return nil
}

// FullPath maps a tree path onto the filesystem.
func (s *Source) FullPath(treePath string) string {
	rel := tree.TrimPrefix(treePath, s.prefix)
	return filepath.Join(s.rootPath, filepath.FromSlash(rel))
}

// ResourceURL returns BaseURL joined with the escaped project-relative path.
func (s *Source) ResourceURL(_ context.Context, path string) (string, error) {
	if s.baseURL == "" {
		return "", fmt.Errorf("no resource base URL configured for %s", path)
	}
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/"), nil
}
