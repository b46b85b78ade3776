package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// SQLiteRecorder persists journal entries to SQLite.
// It is suitable for single-process production use.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteRecorder creates a new SQLite journal recorder.
// The path should be a file path (e.g., "./eventa.journal.db") or
// ":memory:" for testing.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			context_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			msg_type TEXT NOT NULL,
			event_id TEXT NOT NULL,
			correlation_id TEXT NOT NULL DEFAULT '',
			payload BLOB,
			msg_timestamp INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_journal_event_id
		ON journal(event_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteRecorder{db: db}, nil
}

// Record implements Recorder.
func (r *SQLiteRecorder) Record(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO journal
			(context_id, direction, msg_type, event_id, correlation_id, payload, msg_timestamp, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ContextID,
		e.Direction,
		string(e.Message.Type),
		e.Message.EventID,
		e.Message.CorrelationID,
		[]byte(e.Message.Payload),
		e.Message.Timestamp,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}

// List implements Recorder.
func (r *SQLiteRecorder) List(ctx context.Context, limit int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRecorderClosed
	}

	query := `
		SELECT context_id, direction, msg_type, event_id, correlation_id, payload, msg_timestamp, recorded_at
		FROM journal
		ORDER BY seq
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var msgType string
		var payload []byte
		var recordedAt string
		if err := rows.Scan(&e.ContextID, &e.Direction, &msgType, &e.Message.EventID,
			&e.Message.CorrelationID, &payload, &e.Message.Timestamp, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Message.Type = wire.Type(msgType)
		if len(payload) > 0 {
			e.Message.Payload = payload
		}
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Count implements Recorder.
func (r *SQLiteRecorder) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, ErrRecorderClosed
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

// Close implements Recorder. Idempotent.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
