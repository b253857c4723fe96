package ledger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultPath is the ledger file used when none is configured.
const DefaultPath = "processed_ids.txt"

// FileLedger is an append-only file of processed IDs, one per line,
// read in full at startup. It assumes a single writer; concurrent runs
// against the same file can double-process (use the Postgres backend
// for that).
type FileLedger struct {
	mu   sync.Mutex
	ids  map[string]bool
	file *os.File
}

// OpenFile opens (creating if necessary) the ledger file and loads all
// previously marked IDs.
func OpenFile(path string) (*FileLedger, error) {
	if path == "" {
		path = DefaultPath
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file %s: %w", path, err)
	}

	ids := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			ids[id] = true
		}
	}
	if err := scanner.Err(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read ledger file %s: %w", path, err)
	}

	return &FileLedger{ids: ids, file: file}, nil
}

// Contains reports whether id has already been marked.
func (l *FileLedger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ids[id]
}

// Mark durably appends id to the ledger. The entry is synced to disk
// before Mark returns, so a crash after Mark never loses the commit.
func (l *FileLedger) Mark(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ids[id] {
		return nil
	}
	if _, err := l.file.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	l.ids[id] = true
	return nil
}

// IDs returns a snapshot of all marked IDs.
func (l *FileLedger) IDs() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]bool, len(l.ids))
	for id := range l.ids {
		out[id] = true
	}
	return out
}

// Close closes the underlying file.
func (l *FileLedger) Close() error {
	return l.file.Close()
}
