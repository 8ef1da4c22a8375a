// Package tree walks lazily loaded project trees and provides helpers for
// working with them.
package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/texforge/texforge/pkg/models"
)

// ErrNilRoot is returned when enumeration is asked to walk no tree.
var ErrNilRoot = errors.New("tree: nil root")

// Loader populates the children of a folder that is not yet loaded and
// marks it Loaded. Load blocks until the folder is loaded or ctx is done.
type Loader interface {
	Load(ctx context.Context, dir *models.FileNode) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, dir *models.FileNode) error

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, dir *models.FileNode) error {
	return f(ctx, dir)
}

// CallbackLoader adapts a completion-callback style load trigger. The
// trigger must call done exactly once.
func CallbackLoader(trigger func(dir *models.FileNode, done func(error))) Loader {
	return LoaderFunc(func(ctx context.Context, dir *models.FileNode) error {
		result := make(chan error, 1)
		trigger(dir, func(err error) {
			select {
			case result <- err:
			default:
			}
		})
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Enumerator flattens a tree into file records.
type Enumerator struct {
	Loader Loader
	// Prefix is the filesystem-root prefix stripped from every file path.
	Prefix string
}

// Enumerate walks the tree breadth-first from root, loading folders on
// demand one at a time, and returns every reachable file in discovery
// order. A load that never completes blocks until ctx is done.
func (e *Enumerator) Enumerate(ctx context.Context, root *models.FileNode) ([]models.FileRecord, error) {
	if root == nil {
		return nil, ErrNilRoot
	}

	queue := []*models.FileNode{root}
	seenDirs := map[*models.FileNode]struct{}{root: {}}
	seenFiles := make(map[string]struct{})
	files := []models.FileRecord{}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := queue[0]
		queue = queue[1:]

		if !dir.Loaded {
			if e.Loader == nil {
				return nil, fmt.Errorf("load %s: no loader configured", dir.Path)
			}
			if err := e.Loader.Load(ctx, dir); err != nil {
				return nil, fmt.Errorf("load %s: %w", dir.Path, err)
			}
		}

		for _, child := range dir.Children {
			switch child.Type {
			case models.NodeFolder:
				if _, ok := seenDirs[child]; ok {
					continue
				}
				seenDirs[child] = struct{}{}
				queue = append(queue, child)
			case models.NodeFile:
				path := TrimPrefix(child.Path, e.Prefix)
				if _, ok := seenFiles[path]; ok {
					continue
				}
				seenFiles[path] = struct{}{}
				files = append(files, models.FileRecord{
					Path:       path,
					ModifiedAt: child.ModTime,
				})
			}
		}
	}

	return files, nil
}

// TrimPrefix turns a tree path into a project-relative path by removing the
// filesystem-root prefix and the separator that follows it.
func TrimPrefix(path, prefix string) string {
	if prefix != "" && prefix != "/" && strings.HasPrefix(path, prefix) {
		rest := path[len(prefix):]
		if rest == "" || rest[0] == '/' {
			path = rest
		}
	}
	return strings.TrimPrefix(path, "/")
}

// FindByPath resolves a path in the loaded part of the tree (recursive).
func FindByPath(root *models.FileNode, path string) *models.FileNode {
	if root == nil {
		return nil
	}
	if root.Path == path {
		return root
	}
	for _, child := range root.Children {
		if found := FindByPath(child, path); found != nil {
			return found
		}
	}
	return nil
}

// CountNodes counts all loaded nodes in a tree.
func CountNodes(root *models.FileNode) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountNodes(child)
	}
	return count
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == "/" || parentPath == "" {
		return "/" + name
	}
	return parentPath + "/" + name
}
