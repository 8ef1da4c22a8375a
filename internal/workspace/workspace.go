// Package workspace tracks the documents open in the editor: their live
// content, the order they were opened in and which one has focus.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/texforge/texforge/internal/builder"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/tree"
)

// ErrNotOpen is returned for operations on a document that is not open.
var ErrNotOpen = errors.New("document not open")

// Document is an open buffer.
type Document struct {
	Path    string
	Content string
	Dirty   bool
}

// Workspace holds open documents in open order. It is safe for concurrent
// use.
type Workspace struct {
	root string

	mu      sync.RWMutex
	docs    []*Document
	focused string
}

// New creates a workspace whose project files live under root on disk.
func New(root string) *Workspace {
	return &Workspace{root: root}
}

// Open adds a document with the given content, or replaces the content of
// an already open one without changing its position.
func (w *Workspace) Open(path, content string) {
	path = normalize(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if doc := w.find(path); doc != nil {
		doc.Content = content
		return
	}
	w.docs = append(w.docs, &Document{Path: path, Content: content})
}

// OpenFile opens a project file with its content read from disk.
func (w *Workspace) OpenFile(path string) error {
	path = normalize(path)
	data, err := os.ReadFile(w.fullPath(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	w.Open(path, string(data))
	return nil
}

// Edit replaces the live content of an open document and marks it dirty.
func (w *Workspace) Edit(path, content string) error {
	path = normalize(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	doc := w.find(path)
	if doc == nil {
		return fmt.Errorf("%w: %s", ErrNotOpen, path)
	}
	doc.Content = content
	doc.Dirty = true
	return nil
}

// Close removes a document. Closing the focused document clears focus.
func (w *Workspace) Close(path string) bool {
	path = normalize(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, doc := range w.docs {
		if doc.Path == path {
			w.docs = append(w.docs[:i], w.docs[i+1:]...)
			if w.focused == path {
				w.focused = ""
			}
			return true
		}
	}
	return false
}

// Focus gives focus to an open document.
func (w *Workspace) Focus(path string) error {
	path = normalize(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.find(path) == nil {
		return fmt.Errorf("%w: %s", ErrNotOpen, path)
	}
	w.focused = path
	return nil
}

// Focused returns the focused document path, or "".
func (w *Workspace) Focused() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.focused
}

// Buffers returns a snapshot of the open documents in open order.
func (w *Workspace) Buffers() []builder.Buffer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]builder.Buffer, len(w.docs))
	for i, doc := range w.docs {
		out[i] = builder.Buffer{Path: doc.Path, Content: doc.Content}
	}
	return out
}

// Document returns a copy of an open document.
func (w *Workspace) Document(path string) (Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if doc := w.find(normalize(path)); doc != nil {
		return *doc, true
	}
	return Document{}, false
}

// Save writes an open document to disk and clears its dirty flag. When the
// file is present in the loaded part of root, its node gets the new
// modification time so the next compile request carries it.
func (w *Workspace) Save(path string, root *models.FileNode, prefix string) error {
	path = normalize(path)

	w.mu.Lock()
	doc := w.find(path)
	if doc == nil {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOpen, path)
	}
	content := doc.Content
	w.mu.Unlock()

	full := w.fullPath(path)
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	w.mu.Lock()
	if doc := w.find(path); doc != nil && doc.Content == content {
		doc.Dirty = false
	}
	w.mu.Unlock()

	if node := tree.FindByPath(root, treePath(prefix, path)); node != nil {
		node.Touch(info.ModTime())
	}

	logging.Debug("document saved", zap.String("path", path), zap.Int("bytes", len(content)))
	return nil
}

func (w *Workspace) find(path string) *Document {
	for _, doc := range w.docs {
		if doc.Path == path {
			return doc
		}
	}
	return nil
}

func (w *Workspace) fullPath(path string) string {
	return filepath.Join(w.root, filepath.FromSlash(path))
}

func normalize(path string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "/")
}

func treePath(prefix, path string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	return prefix + "/" + path
}
