// Package history persists past certification results to a JSONL file
// so teams can track how their conformance score changes over time.
// The file grows append-only, no entries are ever overwritten or
// deleted, and all data stays local.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"certline/pkg/certify"
)

// Entry is a single record in the certification history.
type Entry struct {
	RecordedAt time.Time      `json:"recorded_at"`
	Result     certify.Result `json:"result"`
}

// Store is a certification history backed by a JSONL file, one JSON
// object per line. The parent directory is created on first append.
type Store struct {
	path string

	// Now is injectable for tests.
	Now func() time.Time
}

func NewStore(path string) *Store {
	if path == "" {
		path = "cert-history.jsonl"
	}
	return &Store{path: path, Now: time.Now}
}

// Path returns the location of the backing JSONL file.
func (s *Store) Path() string { return s.path }

// Append writes one result to the end of the history file and returns
// the entry that was written, including its recorded_at timestamp.
func (s *Store) Append(result certify.Result) (Entry, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Entry{}, fmt.Errorf("create history dir: %w", err)
		}
	}

	entry := Entry{RecordedAt: s.Now().UTC(), Result: result}
	line, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal history entry: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return Entry{}, fmt.Errorf("write history entry: %w", err)
	}
	return entry, nil
}

// LoadAll reads every entry in chronological order. A missing file
// reads as empty. Malformed lines are skipped silently so a partially
// written record never breaks history loading.
func (s *Store) LoadAll() ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return entries, nil
}

// Latest returns the most recently appended entry. The second return
// is false when the history is empty.
func (s *Store) Latest() (Entry, bool, error) {
	entries, err := s.LoadAll()
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	entries, err := s.LoadAll()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ForImplementation returns all entries for one implementation name,
// oldest first.
func (s *Store) ForImplementation(name string) ([]Entry, error) {
	entries, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.Result.RunResult.ImplementationName == name {
			out = append(out, e)
		}
	}
	return out, nil
}
