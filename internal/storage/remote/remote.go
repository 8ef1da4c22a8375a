// Package remote provides a project tree served by a file server's
// /api/v1/tree endpoint.
package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/tree"
)

// FileServer is the part of the client the remote tree needs.
type FileServer interface {
	ListDirectory(ctx context.Context, dirPath string) ([]*models.FileNode, error)
	ContentURL(treePath string) string
}

// Source implements storage.Source on top of a file server.
type Source struct {
	server FileServer
	prefix string
}

// New creates a remote tree rooted at prefix.
func New(server FileServer, prefix string) *Source {
	return &Source{server: server, prefix: strings.TrimSuffix(prefix, "/")}
}

// Type returns "remote".
func (s *Source) Type() string {
	return "remote"
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
	name := rootPath[strings.LastIndex(rootPath, "/")+1:]
	return &models.FileNode{Name: name, Path: rootPath, Type: models.NodeFolder}, nil
}

// Load fetches one directory listing. Listed folders come back unloaded
// even when the server includes their children.
func (s *Source) Load(ctx context.Context, dir *models.FileNode) error {
	children, err := s.server.ListDirectory(ctx, dir.Path)
	if err != nil {
		metrics.RecordTreeLoad(s.Type(), false)
		return err
	}

	for _, child := range children {
		if child == nil {
			return fmt.Errorf("list %s: nil entry", dir.Path)
		}
		if child.Path == "" {
			child.Path = tree.BuildChildPath(dir.Path, child.Name)
		}
		child.Loaded = false
		if child.IsDir() {
			child.Children = nil
		}
	}

	dir.Children = children
	dir.Loaded = true
	metrics.RecordTreeLoad(s.Type(), true)
	return nil
}

// ResourceURL returns the file server content URL for a project path.
func (s *Source) ResourceURL(_ context.Context, path string) (string, error) {
	return s.server.ContentURL(s.prefix + "/" + strings.TrimPrefix(path, "/")), nil
}
