// Package queue implements the durable, SQLite-backed retry queue that
// holds files the uploader could not sync immediately.
//
// It follows the teacher's storage/sqlite package in spirit: a single
// schema string applied with CREATE TABLE IF NOT EXISTS, plain
// database/sql with the pure-Go ncruces/go-sqlite3 driver (no cgo), and
// one Go file per concern.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Status is the lifecycle state of a queued item.
type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
	Failed    Status = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS retry_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT NOT NULL,
	operation TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_retry_queue_status_retry ON retry_queue(status, retry_count);
`

// Item is one row of the retry queue. Operation is the watcher event kind
// (created/modified/existing) that triggered the upload attempt this item
// records — the content digest is never persisted here, since it is
// recomputed from the file on every retry.
type Item struct {
	ID         int64
	FilePath   string
	Operation  string
	Status     Status
	RetryCount int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Queue wraps the retry queue's SQLite database.
type Queue struct {
	db *sql.DB
}

// Open creates (if needed) the parent directory and database file at
// dbPath, applies the schema, and returns a ready Queue.
func Open(dbPath string) (*Queue, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating queue directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening retry queue db: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer file, avoid SQLITE_BUSY under concurrent access

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying retry queue schema: %w", err)
	}

	return &Queue{db: db}, nil
}

// Close releases the underlying database handle.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue inserts a new pending item for filePath/operation and returns its
// assigned id.
func (q *Queue) Enqueue(ctx context.Context, filePath, operation string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO retry_queue (file_path, operation, status) VALUES (?, ?, ?)`,
		filePath, operation, Pending)
	if err != nil {
		return 0, fmt.Errorf("enqueueing %s: %w", filePath, err)
	}
	return res.LastInsertId()
}

// Pending returns up to limit pending items in FIFO (ascending id) order.
func (q *Queue) Pending(ctx context.Context, limit int) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, file_path, operation, status, retry_count, last_error, created_at, updated_at
		 FROM retry_queue WHERE status = ? ORDER BY id ASC LIMIT ?`,
		Pending, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var status string
		if err := rows.Scan(&it.ID, &it.FilePath, &it.Operation, &status, &it.RetryCount, &it.LastError, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning pending item: %w", err)
		}
		it.Status = Status(status)
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkCompleted transitions an item to completed.
func (q *Queue) MarkCompleted(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE retry_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		Completed, id)
	if err != nil {
		return fmt.Errorf("marking item %d completed: %w", id, err)
	}
	return nil
}

// MarkFailed transitions an item to failed (retries exhausted), recording
// the last error.
func (q *Queue) MarkFailed(ctx context.Context, id int64, lastErr string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE retry_queue SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		Failed, lastErr, id)
	if err != nil {
		return fmt.Errorf("marking item %d failed: %w", id, err)
	}
	return nil
}

// IncrementRetry atomically bumps retry_count and records lastErr, returning
// the new count. It uses UPDATE ... RETURNING (SQLite 3.35+) so the
// read-modify-write is a single statement rather than the
// read-then-write the original agent performs, which is safe to call
// concurrently across agent instances sharing a queue database.
func (q *Queue) IncrementRetry(ctx context.Context, id int64, lastErr string) (int, error) {
	var count int
	row := q.db.QueryRowContext(ctx,
		`UPDATE retry_queue
		 SET retry_count = retry_count + 1, last_error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING retry_count`,
		lastErr, id)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("incrementing retry count for item %d: %w", id, err)
	}
	return count, nil
}

// Stats summarizes queue contents by status.
type Stats struct {
	Pending   int
	Completed int
	Failed    int
}

// GetStats reports how many items are in each status.
func (q *Queue) GetStats(ctx context.Context) (Stats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM retry_queue GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("querying queue stats: %w", err)
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scanning queue stats: %w", err)
		}
		switch Status(status) {
		case Pending:
			s.Pending = count
		case Completed:
			s.Completed = count
		case Failed:
			s.Failed = count
		}
	}
	return s, rows.Err()
}
