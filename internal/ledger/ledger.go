// Package ledger is the idempotency boundary: a durable record of which
// source item IDs have already produced a sink record. An ID is marked
// only after the corresponding create call succeeded, so the ledger
// never claims success for a record that was not created.
package ledger

import (
	"context"
	"strings"
)

// Ledger tracks processed source item IDs. Mark is safe to call
// redundantly; marking an already-marked ID is a no-op.
type Ledger interface {
	Contains(id string) bool
	Mark(ctx context.Context, id string) error
	// IDs returns a snapshot of all marked IDs.
	IDs() map[string]bool
	Close() error
}

// Open chooses a backend: a Postgres ledger when databaseURL is set
// (safe under concurrent runs), otherwise the append-only file ledger
// at path (single writer only).
func Open(ctx context.Context, path, databaseURL string) (Ledger, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return OpenPostgres(ctx, databaseURL)
	}
	return OpenFile(path)
}
