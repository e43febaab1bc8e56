package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps transcripts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			history TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) EnsureUser(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, userID int64, text string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET
			history = CASE WHEN history = '' THEN $2::text ELSE history || chr(10) || $3::text END,
			updated_at = NOW()
		WHERE user_id = $1`,
		userID, Compose("", text), text)
	if err != nil {
		return fmt.Errorf("append turn for %d: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) ReadHistory(ctx context.Context, userID int64) (string, error) {
	var blob string
	err := s.pool.QueryRow(ctx, `SELECT history FROM users WHERE user_id = $1`, userID).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) ClearHistory(ctx context.Context, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET history = '', updated_at = NOW() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear history for %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
