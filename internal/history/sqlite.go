package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps transcripts in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection, so writers never contend.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		history TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, userID int64) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, history, created_at, updated_at)
		VALUES (?, '', ?, ?)
		ON CONFLICT(user_id) DO NOTHING`, userID, now, now)
	if err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, userID int64, text string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			history = CASE WHEN history = '' THEN ? ELSE history || char(10) || ? END,
			updated_at = ?
		WHERE user_id = ?`,
		Compose("", text), text, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("append turn for %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) ReadHistory(ctx context.Context, userID int64) (string, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT history FROM users WHERE user_id = ?`, userID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return NoHistory, nil
	}
	if err != nil {
		return "", fmt.Errorf("read history for %d: %w", userID, err)
	}
	if blob == "" {
		return NoHistory, nil
	}
	return blob, nil
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET history = '', updated_at = ? WHERE user_id = ?`,
		time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("clear history for %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear history for %d: %w", userID, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
