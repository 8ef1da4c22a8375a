// Package storage defines the Source interface for project trees and
// selects a backend from configuration.
package storage

import (
	"context"

	"github.com/texforge/texforge/internal/builder"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/tree"
)

// Source is a lazily loaded project tree together with the URLs the CLSI
// uses to fetch persisted files from it.
// Implementations: local filesystem, S3 bucket, remote file server.
type Source interface {
	tree.Loader
	builder.URLResolver

	// Root returns a fresh, unloaded root node.
	Root(ctx context.Context) (*models.FileNode, error)

	// Prefix is the filesystem-root prefix carried by every node path.
	Prefix() string

	// Type returns the backend type identifier ("local", "s3", "remote").
	Type() string
}
