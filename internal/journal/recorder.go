package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-alarm/internal/alarm"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/logging"
)

// defaultWriteTimeout bounds a single journal insert on the controller loop.
const defaultWriteTimeout = 2 * time.Second

// Recorder journals controller transitions. It implements alarm.Observer.
type Recorder struct {
	repo      Repository
	logger    *logging.Logger
	sessionID string
	timeout   time.Duration
}

// NewRecorder creates a Recorder with a fresh session ID.
func NewRecorder(repo Repository, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{
		repo:      repo,
		logger:    logger,
		sessionID: uuid.NewString(),
		timeout:   defaultWriteTimeout,
	}
}

// SessionID returns the ID stamped on every entry from this recorder.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Observe writes t to the journal. Failures are logged and dropped.
func (r *Recorder) Observe(t alarm.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	entry := Entry{
		ID:         uuid.NewString(),
		SessionID:  r.sessionID,
		Kind:       string(t.Kind),
		Topic:      t.Event.Topic,
		Payload:    t.Event.Payload,
		Armed:      t.After.Armed,
		EntryAlarm: t.After.EntryAlarm,
		Published:  t.Published,
		CreatedAt:  t.At,
	}

	if err := r.repo.Record(ctx, entry); err != nil {
		r.logger.Error("recording alarm journal entry",
			"kind", entry.Kind,
			"topic", entry.Topic,
			"error", err,
		)
	}
}

// RunPruner deletes entries older than retention once immediately and then
// every interval until ctx is done.
func RunPruner(ctx context.Context, repo Repository, retention, interval time.Duration, logger *logging.Logger) {
	if retention <= 0 {
		return
	}
	if logger == nil {
		logger = logging.Discard()
	}

	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("pruning alarm journal", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("pruned alarm journal", "deleted", n, "retention", retention.String())
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
