package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-alarm/internal/alarm"
	"github.com/nerrad567/gray-logic-alarm/internal/journal"
)

// EventStateChanged is the WebSocket channel carrying StateView payloads.
const EventStateChanged = "alarm.state_changed"

// StateView is the JSON form of the controller state.
type StateView struct {
	Armed      bool       `json:"armed"`
	EntryAlarm bool       `json:"entry_alarm"`
	State      alarm.Mode `json:"state"`

	// UpdatedAt is when the state last changed. Empty before boot.
	UpdatedAt string `json:"updated_at,omitempty"`
}

// HistoryResponse is the body of GET /api/v1/alarm/history.
type HistoryResponse struct {
	Entries []journal.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// handleGetAlarm returns the current alarm state.
func (s *Server) handleGetAlarm(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleAlarmHistory returns journal entries newest first.
//
// Query parameters:
//   - limit: max entries (default 50, max 200)
func (s *Server) handleAlarmHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "alarm journal is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("querying alarm history", "error", err)
		writeInternalError(w, "failed to query alarm history")
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Entries: entries,
		Count:   len(entries),
	})
}
