// Package history persists one free-text transcript per user.
//
// A transcript starts absent, gets the Header line on its first append and
// then grows by newline-joined turns until the user clears it. Clearing
// resets the blob to an empty string but keeps the user record.
package history

import (
	"context"
	"errors"
	"fmt"

	"salyqbot/internal/config"
)

const (
	// Header is the first line of every non-empty transcript.
	Header = "HISTORY"
	// NoHistory is returned by ReadHistory when the user is unknown or the
	// transcript is empty.
	NoHistory = "None"
)

var ErrUserNotFound = errors.New("user not found")

// Store is implemented by every history backend. Implementations must be
// safe for concurrent use and apply each call atomically for a single user.
type Store interface {
	// EnsureUser creates an empty record for userID if none exists.
	EnsureUser(ctx context.Context, userID int64) error
	// AppendTurn appends text to the transcript. Unknown users are ignored.
	AppendTurn(ctx context.Context, userID int64, text string) error
	// ReadHistory returns the transcript or NoHistory.
	ReadHistory(ctx context.Context, userID int64) (string, error)
	// ClearHistory empties the transcript or returns ErrUserNotFound.
	ClearHistory(ctx context.Context, userID int64) error
	Close() error
}

// Compose returns blob with text appended under the transcript rules.
func Compose(blob, text string) string {
	if blob == "" {
		return Header + "\n" + text
	}
	return blob + "\n" + text
}

// Open builds the backend selected by cfg.HistoryBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.HistoryBackend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile:
		return NewFileStore(cfg.HistoryFilePath)
	case config.BackendSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.HistoryBackend)
	}
}
