package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository implements Repository on the alarm_journal table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts e.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - e: Entry with ID, SessionID, Kind and Topic set
//
// Returns:
//   - error: ErrInvalidEntry, or the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.ID == "" || e.SessionID == "" || e.Kind == "" {
		return fmt.Errorf("%w: id, session_id and kind are required", ErrInvalidEntry)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alarm_journal
		 (id, session_id, kind, topic, payload, armed, entry_alarm, published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.SessionID,
		e.Kind,
		e.Topic,
		e.Payload,
		boolToInt(e.Armed),
		boolToInt(e.EntryAlarm),
		e.Published,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}

	return nil
}

// History returns recent entries ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) History(ctx context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, kind, topic, payload, armed, entry_alarm, published, created_at
		 FROM alarm_journal
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			armed      int
			entryAlarm int
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Topic, &e.Payload,
			&armed, &entryAlarm, &e.Published, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		e.Armed = armed == 1
		e.EntryAlarm = entryAlarm == 1

		e.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than now-olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: ErrInvalidRetention, or the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM alarm_journal WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting journal entries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	t, err := time.Parse(timeFormat, value)
	if err == nil {
		return t, nil
	}

	// Rows written by hand or older tooling.
	if fallback, fallbackErr := time.Parse(time.RFC3339Nano, value); fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
