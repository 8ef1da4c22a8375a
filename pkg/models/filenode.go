// Package models contains data types shared by the tree sources, the
// request builder and the compile orchestrator.
package models

import "time"

// NodeType tags a tree node as a folder or a file.
type NodeType string

const (
	NodeFolder NodeType = "folder"
	NodeFile   NodeType = "file"
)

// FileNode represents a file or directory in a lazily loaded project tree.
// A folder's Children are only meaningful once Loaded is true; tree sources
// populate them in their Load method.
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     NodeType    `json:"type"`
	Size     int64       `json:"size,omitempty"`
	ModTime  time.Time   `json:"mtime"`
	Loaded   bool        `json:"-"`
	Children []*FileNode `json:"children,omitempty"`
}

// IsDir reports whether the node is a folder.
func (n *FileNode) IsDir() bool {
	return n.Type == NodeFolder
}

// Touch records a new modification time, e.g. after the file was saved.
func (n *FileNode) Touch(t time.Time) {
	n.ModTime = t
}

// FileRecord is a snapshot of one project file taken during enumeration.
type FileRecord struct {
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
}
