package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// fileSettings is the on-disk layout:
//
//	[latex]
//	compiler = "xelatex"
//	main_path = "thesis.tex"
type fileSettings struct {
	LaTeX latexSection `toml:"latex"`
}

type latexSection struct {
	Compiler string `toml:"compiler,omitempty"`
	MainPath string `toml:"main_path,omitempty"`
}

// FileStore keeps settings in a TOML file. A missing file reads as empty
// settings. The file is re-read on every call so external edits are seen.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the TOML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// Compiler returns the configured compiler.
func (s *FileStore) Compiler(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fsettings, err := s.read()
	if err != nil {
		return "", err
	}
	return fsettings.LaTeX.Compiler, nil
}

// MainPath returns the configured main file.
func (s *FileStore) MainPath(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fsettings, err := s.read()
	if err != nil {
		return "", err
	}
	return fsettings.LaTeX.MainPath, nil
}

// SetMainPath updates main_path and rewrites the file, keeping the other
// settings.
func (s *FileStore) SetMainPath(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fsettings, err := s.read()
	if err != nil {
		return err
	}
	fsettings.LaTeX.MainPath = path
	return s.write(fsettings)
}

func (s *FileStore) read() (fileSettings, error) {
	var fsettings fileSettings
	if _, err := toml.DecodeFile(s.path, &fsettings); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileSettings{}, nil
		}
		return fileSettings{}, fmt.Errorf("%s: failed to parse TOML: %w", s.path, err)
	}
	return fsettings, nil
}

func (s *FileStore) write(fsettings fileSettings) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(fsettings); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".texforge-settings-*")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// SetCompiler updates compiler and rewrites the file.
func (s *FileStore) SetCompiler(ctx context.Context, compiler string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fsettings, err := s.read()
	if err != nil {
		return err
	}
	fsettings.LaTeX.Compiler = compiler
	return s.write(fsettings)
}
