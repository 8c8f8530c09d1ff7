// Package archive records completed import sessions in an embedded SQLite
// database so past analyses can be listed and re-opened.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"qachart/domain/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS import_sessions (
	id                TEXT PRIMARY KEY,
	source_path       TEXT NOT NULL,
	template          TEXT NOT NULL,
	charting_variable TEXT NOT NULL,
	observations      INTEGER NOT NULL,
	variables         INTEGER NOT NULL,
	fingerprint       TEXT NOT NULL,
	imported_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_import_sessions_imported_at
	ON import_sessions (imported_at DESC);
`

// Session is one recorded import.
type Session struct {
	ID               core.SessionID `db:"id"`
	SourcePath       string         `db:"source_path"`
	Template         string         `db:"template"`
	ChartingVariable string         `db:"charting_variable"`
	Observations     int            `db:"observations"`
	Variables        int            `db:"variables"`
	Fingerprint      string         `db:"fingerprint"`
	ImportedAt       time.Time      `db:"imported_at"`
}

// Store wraps the session archive database.
type Store struct {
	db *sqlx.DB
}

// Open creates or opens the archive at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one completed session.
func (s *Store) Record(ctx context.Context, session *Session) error {
	if session.ID.String() == "" {
		session.ID = core.NewSessionID()
	}
	if session.ImportedAt.IsZero() {
		session.ImportedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO import_sessions
			(id, source_path, template, charting_variable,
			 observations, variables, fingerprint, imported_at)
		VALUES
			(:id, :source_path, :template, :charting_variable,
			 :observations, :variables, :fingerprint, :imported_at)`,
		session)
	if err != nil {
		return fmt.Errorf("failed to record import session: %w", err)
	}
	return nil
}

// List returns the most recent sessions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Session
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, source_path, template, charting_variable,
		       observations, variables, fingerprint, imported_at
		FROM import_sessions
		ORDER BY imported_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import sessions: %w", err)
	}
	return out, nil
}
