package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const maxLineBytes = 10 << 20

var ErrClosed = errors.New("recorder is closed")

// FileRecorder keeps one append-only JSONL file open for the life of the
// process. Each event is a single write of one line.
type FileRecorder struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open interaction log %s: %w", path, err)
	}
	return &FileRecorder{path: path, f: f}, nil
}

func (r *FileRecorder) AppendInteraction(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return ErrClosed
	}
	if _, err := r.f.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// LoadInteractions rereads the whole log. Lines that fail to decode, such as a
// torn last line after a crash, are skipped.
func (r *FileRecorder) LoadInteractions() ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for sc.Scan() {
		var ev Event
		if len(sc.Bytes()) == 0 || json.Unmarshal(sc.Bytes(), &ev) != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan interaction log: %w", err)
	}
	return events, nil
}

// Close flushes the log to disk. Appends after Close return ErrClosed.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := errors.Join(r.f.Sync(), r.f.Close())
	r.f = nil
	return err
}
