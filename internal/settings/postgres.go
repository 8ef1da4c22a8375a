package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/texforge/texforge/internal/metrics"
)

const schema = `CREATE TABLE IF NOT EXISTS latex_settings (
	project    TEXT PRIMARY KEY,
	compiler   TEXT NOT NULL DEFAULT '',
	main_path  TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps settings for many projects in one table, keyed by
// project ID.
type PostgresStore struct {
	db      *sql.DB
	project string
}

// NewPostgres connects to databaseURL and returns a store for project.
func NewPostgres(databaseURL, project string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db, project: project}, nil
}

// NewPostgresFromDB wraps an existing connection.
func NewPostgresFromDB(db *sql.DB, project string) *PostgresStore {
	return &PostgresStore{db: db, project: project}
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates the settings table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate latex_settings: %w", err)
	}
	return nil
}

// Compiler returns the project's compiler.
func (s *PostgresStore) Compiler(ctx context.Context) (string, error) {
	return s.column(ctx, "get_compiler", `SELECT compiler FROM latex_settings WHERE project = $1`)
}

// MainPath returns the project's main file.
func (s *PostgresStore) MainPath(ctx context.Context) (string, error) {
	return s.column(ctx, "get_main_path", `SELECT main_path FROM latex_settings WHERE project = $1`)
}

// SetMainPath upserts the project's main file.
func (s *PostgresStore) SetMainPath(ctx context.Context, path string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_main_path", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO latex_settings (project, main_path) VALUES ($1, $2)
		 ON CONFLICT (project) DO UPDATE SET main_path = EXCLUDED.main_path, updated_at = NOW()`,
		s.project, path)
	if err != nil {
		return fmt.Errorf("set main path: %w", err)
	}
	return nil
}

// SetCompiler upserts the project's compiler.
func (s *PostgresStore) SetCompiler(ctx context.Context, compiler string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_compiler", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO latex_settings (project, compiler) VALUES ($1, $2)
		 ON CONFLICT (project) DO UPDATE SET compiler = EXCLUDED.compiler, updated_at = NOW()`,
		s.project, compiler)
	if err != nil {
		return fmt.Errorf("set compiler: %w", err)
	}
	return nil
}

func (s *PostgresStore) column(ctx context.Context, name, query string) (string, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery(name, time.Since(start)) }()

	var value string
	err := s.db.QueryRowContext(ctx, query, s.project).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}
