// Package watcher polls a project directory for changed files.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/texforge/texforge/internal/logging"
)

// Change types.
const (
	ChangeCreate = "create"
	ChangeModify = "modify"
	ChangeDelete = "delete"
)

// Change is one file that differs from the previous scan.
type Change struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Watcher compares modification times between scans. It is not safe for
// concurrent use; Run owns it.
type Watcher struct {
	root     string
	interval time.Duration
	// Ignore reports whether a slash separated project-relative path is
	// skipped. Dot files and dot directories are always skipped.
	Ignore func(rel string) bool

	state map[string]int64 // path -> mtime
}

// New creates a watcher for root polling every interval.
func New(root string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		root:     root,
		interval: interval,
		state:    make(map[string]int64),
	}
}

// Run records the initial state, then polls until ctx is done, calling
// onChange with every non-empty batch. onChange runs on the polling
// goroutine, so a slow callback delays the next poll.
func (w *Watcher) Run(ctx context.Context, onChange func([]Change)) error {
	w.Poll()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if changes := w.Poll(); len(changes) > 0 {
			logging.Debug("project changed", zap.Int("changes", len(changes)))
			onChange(changes)
		}
	}
}

// Poll scans the tree once and returns the changes since the previous
// scan, sorted by path. The first scan of a new watcher reports every file
// as created.
func (w *Watcher) Poll() []Change {
	next := make(map[string]int64)
	var changes []Change

	filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if w.skip(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		mtime := info.ModTime().UnixNano()
		next[rel] = mtime
		if old, ok := w.state[rel]; !ok {
			changes = append(changes, Change{Type: ChangeCreate, Path: rel})
		} else if old != mtime {
			changes = append(changes, Change{Type: ChangeModify, Path: rel})
		}
		return nil
	})

	for rel := range w.state {
		if _, ok := next[rel]; !ok {
			changes = append(changes, Change{Type: ChangeDelete, Path: rel})
		}
	}
	w.state = next

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

func (w *Watcher) skip(rel string) bool {
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return true
	}
	return w.Ignore != nil && w.Ignore(rel)
}
