package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/htol/shelf/logger"
)

// SQLite stores the library in a single table ordered by position.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func NewSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		dsn = "file:" + path + "?mode=rwc&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, openErr(path, err)
	}

	if _, err := db.Exec("PRAGMA temp_store = MEMORY"); err != nil {
		logger.Warn("Failed to set temp_store", "error", err)
	}

	s := &SQLite{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, openErr(path, fmt.Errorf("create schema: %w", err))
	}
	return s, nil
}

// openErr reports a file that exists but is not a SQLite database as ErrParse.
func openErr(path string, err error) error {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrNotADB {
		return fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}
	return fmt.Errorf("open database %s: %w", path, err)
}

func (s *SQLite) createSchema() error {
	sqlStmt := `
           CREATE TABLE IF NOT EXISTS "books" (
               position integer primary key not null,
               title text not null,
               author text not null,
               year integer not null,
               genre text not null,
               image_url text not null default '',
               read boolean not null default 0
           );
           CREATE INDEX IF NOT EXISTS [I_genre] ON "books" ([genre]);
    `
	_, err := s.db.Exec(sqlStmt)
	return err
}

func (s *SQLite) Ping() error {
	if s.db != nil {
		return s.db.Ping()
	}
	return sql.ErrConnDone
}

func (s *SQLite) Close() error {
	if s.db != nil {
		logger.Info("Closing database connection", "path", s.path)
		return s.db.Close()
	}
	return nil
}
