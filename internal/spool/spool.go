// Package spool keeps turn payloads that could not be stored, as one JSON
// object per line, until they are replayed.
package spool

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Entry is one spooled record.
type Entry struct {
	Payload map[string]any `json:"payload"`
}

// Spool is an append-only JSONL file. Appends are serialized within a
// process only; concurrent processes appending to the same file are not
// coordinated.
type Spool struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// New returns a spool backed by the OS filesystem.
func New(path string) *Spool {
	return NewWithFs(afero.NewOsFs(), path)
}

// NewWithFs returns a spool on the given filesystem.
func NewWithFs(fs afero.Fs, path string) *Spool {
	return &Spool{fs: fs, path: path}
}

// Path returns the spool file path.
func (s *Spool) Path() string {
	return s.path
}

// Append writes one payload as a new line.
func (s *Spool) Append(payload map[string]any) error {
	line, err := json.Marshal(Entry{Payload: payload})
	if err != nil {
		return fmt.Errorf("encode spool entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}
	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open spool: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write spool: %w", err)
	}
	return f.Close()
}

// ReadAll returns every entry in order. Blank and undecodable lines are
// skipped. A missing file yields no entries.
func (s *Spool) ReadAll() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("read spool: %w", err)
	}
	return entries, nil
}

// Count returns the number of readable entries.
func (s *Spool) Count() (int, error) {
	entries, err := s.ReadAll()
	return len(entries), err
}

// Clear removes the spool file.
func (s *Spool) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear spool: %w", err)
	}
	return nil
}
