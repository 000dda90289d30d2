package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteIntroStore persists intro flags in a SQLite file.
type SQLiteIntroStore struct {
	db *sql.DB
}

// NewSQLiteIntroStore opens (and creates if needed) the flag database.
func NewSQLiteIntroStore(ctx context.Context, dbPath string) (*SQLiteIntroStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open intro database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	const schema = `
	CREATE TABLE IF NOT EXISTS intro_flags (
		personagem TEXT NOT NULL,
		user_name  TEXT NOT NULL,
		shown_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (personagem, user_name)
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("intro database migration failed: %w", err)
	}
	return &SQLiteIntroStore{db: db}, nil
}

func (s *SQLiteIntroStore) MarkShown(ctx context.Context, character, user string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO intro_flags (personagem, user_name) VALUES (?, ?)`,
		character, user)
	if err != nil {
		return false, fmt.Errorf("failed to mark intro shown: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read intro flag result: %w", err)
	}
	return n == 1, nil
}

// Close closes the database.
func (s *SQLiteIntroStore) Close() error {
	return s.db.Close()
}
