package journal

import (
	"context"
	"time"
)

const (
	// DefaultHistoryLimit applies when a caller passes limit <= 0.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps a single history query.
	MaxHistoryLimit = 200
)

// Entry is one journaled alarm event.
type Entry struct {
	// ID is a UUID assigned when the entry is recorded.
	ID string `json:"id"`

	// SessionID identifies the controller run that wrote the entry.
	SessionID string `json:"session_id"`

	// Kind is the event classification (boot, button, pir, ...).
	Kind string `json:"kind"`

	Topic   string `json:"topic"`
	Payload string `json:"payload"`

	// Armed and EntryAlarm are the state after the event.
	Armed      bool `json:"armed"`
	EntryAlarm bool `json:"entry_alarm"`

	// Published is the number of state messages the broker accepted.
	Published int `json:"published"`

	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and queries journal entries.
type Repository interface {
	// Record inserts an entry.
	Record(ctx context.Context, e Entry) error

	// History returns the most recent entries, newest first.
	// limit <= 0 uses DefaultHistoryLimit; values above MaxHistoryLimit are capped.
	History(ctx context.Context, limit int) ([]Entry, error)

	// Prune deletes entries older than olderThan and returns the count.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// clampLimit applies the history limit bounds.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
