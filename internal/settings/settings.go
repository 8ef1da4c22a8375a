// Package settings persists the per-project LaTeX settings read by the
// compile orchestrator: the compiler and the main file.
package settings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/texforge/texforge/internal/config"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/pkg/tree"
)

// Store reads and writes project settings. Unset values are returned as "".
type Store interface {
	Compiler(ctx context.Context) (string, error)
	MainPath(ctx context.Context) (string, error)
	SetMainPath(ctx context.Context, path string) error
}

// ErrInvalidMainPath is returned when a main file path is empty after the
// tree prefix is removed.
var ErrInvalidMainPath = errors.New("invalid main file path")

// Open returns a PostgresStore when a database URL is configured and a
// FileStore otherwise.
func Open(cfg *config.Config) (Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := NewPostgres(cfg.DatabaseURL, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(context.Background()); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
	return NewFileStore(cfg.SettingsFile), nil
}

// SetMainFile stores treePath as the project's main file. treePath is a
// path as shown in the project tree; prefix is removed so the stored value
// matches the paths used in compile requests.
func SetMainFile(ctx context.Context, store Store, treePath, prefix string) (string, error) {
	rel := tree.TrimPrefix(treePath, prefix)
	if rel == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidMainPath, treePath)
	}
	if err := store.SetMainPath(ctx, rel); err != nil {
		return "", fmt.Errorf("set main file: %w", err)
	}
	logging.WithContext(ctx).Info("main file set", zap.String("path", rel))
	return rel, nil
}
