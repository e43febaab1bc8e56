package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

type fileRecord struct {
	UserID  int64  `json:"user_id"`
	History string `json:"history"`
}

// FileStore keeps all transcripts in a single JSON file. Every call reloads
// and, for writes, rewrites the whole file under a mutex.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	// Touch file if not exists
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileStore{path: path}, nil
}

func (s *FileStore) EnsureUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	if indexOf(recs, userID) >= 0 {
		return nil
	}
	return s.saveUnlocked(append(recs, fileRecord{UserID: userID}))
}

func (s *FileStore) AppendTurn(_ context.Context, userID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	i := indexOf(recs, userID)
	if i < 0 {
		return nil
	}
	recs[i].History = Compose(recs[i].History, text)
	return s.saveUnlocked(recs)
}

func (s *FileStore) ReadHistory(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.loadUnlocked()
	if err != nil {
		return "", err
	}
	if i := indexOf(recs, userID); i >= 0 && recs[i].History != "" {
		return recs[i].History, nil
	}
	return NoHistory, nil
}

func (s *FileStore) ClearHistory(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	i := indexOf(recs, userID)
	if i < 0 {
		return ErrUserNotFound
	}
	recs[i].History = ""
	return s.saveUnlocked(recs)
}

func (s *FileStore) Close() error { return nil }

func indexOf(recs []fileRecord, userID int64) int {
	for i, r := range recs {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}

func (s *FileStore) loadUnlocked() ([]fileRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	var recs []fileRecord
	if err := json.NewDecoder(f).Decode(&recs); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return recs, nil
}

// saveUnlocked writes to a sibling temp file and renames it over s.path,
// so readers never see a half-written file.
func (s *FileStore) saveUnlocked(recs []fileRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
