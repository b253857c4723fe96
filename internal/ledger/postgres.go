package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger stores processed IDs in a Postgres table. The insert
// is atomic (ON CONFLICT DO NOTHING), so concurrent runs sharing one
// database cannot both believe they marked an ID first.
type PostgresLedger struct {
	mu   sync.Mutex
	ids  map[string]bool
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database, ensures the ledger table
// exists, and loads all previously marked IDs.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}

	if _, err := pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS processed_items (
			id TEXT PRIMARY KEY,
			marked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create ledger table: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT id FROM processed_items`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to read ledger rows: %w", err)
	}

	return &PostgresLedger{ids: ids, pool: pool}, nil
}

// Contains reports whether id has already been marked.
func (l *PostgresLedger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ids[id]
}

// Mark records id as processed. Re-marking an existing ID is a no-op.
func (l *PostgresLedger) Mark(ctx context.Context, id string) error {
	l.mu.Lock()
	if l.ids[id] {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO processed_items (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id,
	); err != nil {
		return fmt.Errorf("failed to mark %s in ledger: %w", id, err)
	}

	l.mu.Lock()
	l.ids[id] = true
	l.mu.Unlock()
	return nil
}

// IDs returns a snapshot of all marked IDs.
func (l *PostgresLedger) IDs() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]bool, len(l.ids))
	for id := range l.ids {
		out[id] = true
	}
	return out
}

// Close releases the connection pool.
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}
