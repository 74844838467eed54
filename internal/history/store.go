// Package history persists executed write commands and replays them through
// the normal preview gate.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"crawldesk/internal/core"
	"crawldesk/internal/logging"
)

// Store is the sqlite-backed write history.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the history database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	// WAL keeps readers from blocking the append path; busy_timeout covers
	// the rare concurrent CLI invocation.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", p, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS write_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command_text TEXT NOT NULL,
		interpretation TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		favorite INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_write_history_created ON write_history(created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	logging.History("history store opened at %s", path)
	return &Store{db: db}, nil
}

// Append records an executed write command.
func (s *Store) Append(ctx context.Context, commandText, interpretation string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO write_history (command_text, interpretation, created_at) VALUES (?, ?, ?)`,
		commandText, interpretation, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to record history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read history entry id: %w", err)
	}
	logging.History("recorded entry %d", id)
	return id, nil
}

// List returns history entries, newest first. When favoritesOnly is set,
// only starred entries are returned. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, favoritesOnly bool, limit int) ([]core.HistoryEntry, error) {
	query := `SELECT id, command_text, interpretation, created_at, favorite FROM write_history`
	if favoritesOnly {
		query += ` WHERE favorite = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []core.HistoryEntry
	for rows.Next() {
		var e core.HistoryEntry
		var fav int
		if err := rows.Scan(&e.ID, &e.CommandText, &e.Interpretation, &e.Timestamp, &fav); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Favorite = fav != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns a single entry by id.
func (s *Store) Get(ctx context.Context, id int64) (*core.HistoryEntry, error) {
	var e core.HistoryEntry
	var fav int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, command_text, interpretation, created_at, favorite FROM write_history WHERE id = ?`,
		id).Scan(&e.ID, &e.CommandText, &e.Interpretation, &e.Timestamp, &fav)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("history entry %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history entry %d: %w", id, err)
	}
	e.Favorite = fav != 0
	return &e, nil
}

// ToggleFavorite flips the star on an entry and returns the new state.
func (s *Store) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE write_history SET favorite = 1 - favorite WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite on %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, fmt.Errorf("history entry %d not found", id)
	}

	var fav int
	if err := s.db.QueryRowContext(ctx,
		`SELECT favorite FROM write_history WHERE id = ?`, id).Scan(&fav); err != nil {
		return false, fmt.Errorf("failed to read favorite state of %d: %w", id, err)
	}
	return fav != 0, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
