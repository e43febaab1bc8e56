package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// runStoreSuite checks the transcript contract against any backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("unknown user reads sentinel", func(t *testing.T) {
		s := newStore(t)
		got, err := s.ReadHistory(ctx, 1001)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != NoHistory {
			t.Fatalf("want %q, got %q", NoHistory, got)
		}
		if err := s.EnsureUser(ctx, 1001); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		got, _ = s.ReadHistory(ctx, 1001)
		if got != NoHistory {
			t.Fatalf("registered user without turns: want %q, got %q", NoHistory, got)
		}
	})

	t.Run("ensure is idempotent", func(t *testing.T) {
		s := newStore(t)
		if err := s.EnsureUser(ctx, 7); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if err := s.AppendTurn(ctx, 7, "a\nb"); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := s.EnsureUser(ctx, 7); err != nil {
			t.Fatalf("ensure again: %v", err)
		}
		got, _ := s.ReadHistory(ctx, 7)
		if got != "HISTORY\na\nb" {
			t.Fatalf("re-ensure changed history: %q", got)
		}
	})

	t.Run("appends in order", func(t *testing.T) {
		s := newStore(t)
		_ = s.EnsureUser(ctx, 2)
		turns := []string{"hi\nhello", "what is VAT?\nA tax.", "bye\nsee you"}
		for _, turn := range turns {
			if err := s.AppendTurn(ctx, 2, turn); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		got, err := s.ReadHistory(ctx, 2)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		want := Header + "\n" + strings.Join(turns, "\n")
		if got != want {
			t.Fatalf("want %q, got %q", want, got)
		}
	})

	t.Run("append to unknown user is a no-op", func(t *testing.T) {
		s := newStore(t)
		if err := s.AppendTurn(ctx, 404, "x\ny"); err != nil {
			t.Fatalf("append: %v", err)
		}
		got, _ := s.ReadHistory(ctx, 404)
		if got != NoHistory {
			t.Fatalf("append created a record: %q", got)
		}
		if err := s.ClearHistory(ctx, 404); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("record exists after no-op append: %v", err)
		}
	})

	t.Run("clear resets to first-append form", func(t *testing.T) {
		s := newStore(t)
		_ = s.EnsureUser(ctx, 3)
		_ = s.AppendTurn(ctx, 3, "old\nturn")
		if err := s.ClearHistory(ctx, 3); err != nil {
			t.Fatalf("clear: %v", err)
		}
		got, _ := s.ReadHistory(ctx, 3)
		if got != NoHistory {
			t.Fatalf("after clear want sentinel, got %q", got)
		}
		_ = s.AppendTurn(ctx, 3, "new\nturn")
		got, _ = s.ReadHistory(ctx, 3)
		if got != "HISTORY\nnew\nturn" {
			t.Fatalf("header not re-inserted: %q", got)
		}
	})

	t.Run("clear unknown user", func(t *testing.T) {
		s := newStore(t)
		err := s.ClearHistory(ctx, 5150)
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("want ErrUserNotFound, got %v", err)
		}
		got, _ := s.ReadHistory(ctx, 5150)
		if got != NoHistory {
			t.Fatalf("clear on unknown user mutated state: %q", got)
		}
	})

	t.Run("users are isolated", func(t *testing.T) {
		s := newStore(t)
		_ = s.EnsureUser(ctx, 10)
		_ = s.EnsureUser(ctx, 11)
		_ = s.AppendTurn(ctx, 10, "a\nb")
		_ = s.AppendTurn(ctx, 11, "c\nd")
		if err := s.ClearHistory(ctx, 10); err != nil {
			t.Fatalf("clear: %v", err)
		}
		got, _ := s.ReadHistory(ctx, 11)
		if got != "HISTORY\nc\nd" {
			t.Fatalf("clear leaked to other user: %q", got)
		}
	})

	t.Run("concurrent appends keep every turn", func(t *testing.T) {
		s := newStore(t)
		_ = s.EnsureUser(ctx, 20)
		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.AppendTurn(ctx, 20, fmt.Sprintf("turn-%d", i)); err != nil {
					t.Errorf("append %d: %v", i, err)
				}
			}(i)
		}
		wg.Wait()
		got, _ := s.ReadHistory(ctx, 20)
		lines := strings.Split(got, "\n")
		if len(lines) != n+1 || lines[0] != Header {
			t.Fatalf("want header + %d turns, got %d lines: %q", n, len(lines), got)
		}
		for i := 0; i < n; i++ {
			if !strings.Contains(got, fmt.Sprintf("turn-%d", i)) {
				t.Fatalf("turn-%d lost: %q", i, got)
			}
		}
	})
}

func TestCompose(t *testing.T) {
	if got := Compose("", "a"); got != "HISTORY\na" {
		t.Fatalf("first compose: %q", got)
	}
	if got := Compose("HISTORY\na", "b"); got != "HISTORY\na\nb" {
		t.Fatalf("second compose: %q", got)
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestFileStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "data", "history.json"))
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		return s
	})
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "history.json")
	s1, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	_ = s1.EnsureUser(ctx, 1)
	_ = s1.AppendTurn(ctx, 1, "q\na")

	s2, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ := s2.ReadHistory(ctx, 1)
	if got != "HISTORY\nq\na" {
		t.Fatalf("not persisted: %q", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "history.db")
	s1, err := NewSQLiteStore(ctx, p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	_ = s1.EnsureUser(ctx, 9)
	_ = s1.AppendTurn(ctx, 9, "q\na")
	_ = s1.Close()

	s2, err := NewSQLiteStore(ctx, p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, _ := s2.ReadHistory(ctx, 9)
	if got != "HISTORY\nq\na" {
		t.Fatalf("not persisted: %q", got)
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewPostgresStore(context.Background(), url)
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		if _, err := s.pool.Exec(context.Background(), `TRUNCATE users`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewRedisStore(context.Background(), url)
		if err != nil {
			t.Fatalf("init: %v", err)
		}
		if err := s.rdb.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
