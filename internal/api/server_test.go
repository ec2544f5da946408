package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-alarm/internal/alarm"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-alarm/internal/journal"
	"github.com/nerrad567/gray-logic-alarm/migrations"
)

// fakeStatus is a ConnectionStatus with a fixed answer.
type fakeStatus bool

func (f fakeStatus) IsConnected() bool { return bool(f) }

// failingJournal is a Repository whose queries fail.
type failingJournal struct{}

func (failingJournal) Record(context.Context, journal.Entry) error { return nil }
func (failingJournal) History(context.Context, int) ([]journal.Entry, error) {
	return nil, errors.New("database is locked")
}
func (failingJournal) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

var testWSConfig = config.WebSocketConfig{
	MaxMessageSize: 8192,
	PingInterval:   30,
	PongTimeout:    10,
}

// setupJournal returns a repository on a migrated in-memory database.
func setupJournal(t *testing.T) *journal.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS, "."); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return journal.NewSQLiteRepository(db.DB)
}

// testServer creates a Server with a real journal and a running hub.
func testServer(t *testing.T, repo journal.Repository) *Server {
	t.Helper()

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:      testWSConfig,
		Logger:  logging.Discard(),
		Journal: repo,
		MQTT:    fakeStatus(true),
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return srv
}

func serve(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func transition(kind alarm.Kind, before, after alarm.State, at time.Time) alarm.Transition {
	return alarm.Transition{Kind: kind, Before: before, After: after, At: at}
}

func TestNew_RequiresLogger(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger = nil error, want error")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status ConnectionStatus
		want   bool
	}{
		{name: "connected", status: fakeStatus(true), want: true},
		{name: "disconnected", status: fakeStatus(false), want: false},
		{name: "no mqtt", status: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, nil)
			srv.mqtt = tt.status

			w := serve(t, srv, "/api/v1/health")
			if w.Code != http.StatusOK {
				t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			resp := decode[map[string]any](t, w)
			if resp["status"] != "ok" {
				t.Errorf("status = %v, want ok", resp["status"])
			}
			if resp["mqtt"] != tt.want {
				t.Errorf("mqtt = %v, want %v", resp["mqtt"], tt.want)
			}
		})
	}
}

func TestRequestID_Generated(t *testing.T) {
	w := serve(t, testServer(t, nil), "/api/v1/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestNotFound(t *testing.T) {
	w := serve(t, testServer(t, nil), "/api/v1/devices")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := decode[Error](t, w); got.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", got.Code, ErrCodeNotFound)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestGetAlarm_BeforeBoot(t *testing.T) {
	w := serve(t, testServer(t, nil), "/api/v1/alarm")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	got := decode[map[string]any](t, w)
	if got["armed"] != false || got["entry_alarm"] != false || got["state"] != "disarmed" {
		t.Errorf("body = %v, want disarmed", got)
	}
	if _, ok := got["updated_at"]; ok {
		t.Errorf("updated_at = %v, want omitted before boot", got["updated_at"])
	}
}

func TestObserve_UpdatesState(t *testing.T) {
	srv := testServer(t, nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	srv.Observe(transition(alarm.KindBoot, alarm.State{}, alarm.State{}, at))
	srv.Observe(transition(alarm.KindButton, alarm.State{}, alarm.State{Armed: true}, at.Add(time.Second)))
	srv.Observe(transition(alarm.KindPIR,
		alarm.State{Armed: true}, alarm.State{Armed: true, EntryAlarm: true}, at.Add(2*time.Second)))

	got := decode[StateView](t, serve(t, srv, "/api/v1/alarm"))
	want := StateView{
		Armed:      true,
		EntryAlarm: true,
		State:      alarm.ModeAlarm,
		UpdatedAt:  "2026-03-01T12:00:02Z",
	}
	if got != want {
		t.Errorf("state = %+v, want %+v", got, want)
	}
}

func TestObserve_UnchangedKeepsTimestamp(t *testing.T) {
	srv := testServer(t, nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	armed := alarm.State{Armed: true}

	srv.Observe(transition(alarm.KindButton, alarm.State{}, armed, at))
	srv.Observe(transition(alarm.KindArmed, armed, armed, at.Add(time.Minute)))

	got := srv.snapshot()
	if got.UpdatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("UpdatedAt = %q, want the time of the last change", got.UpdatedAt)
	}
}

func TestAlarmHistory(t *testing.T) {
	repo := setupJournal(t)
	srv := testServer(t, repo)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kinds := []string{"boot", "button", "pir", "button"}
	for i, kind := range kinds {
		err := repo.Record(ctx, journal.Entry{
			ID:        fmt.Sprintf("e-%d", i),
			SessionID: "s-1",
			Kind:      kind,
			Topic:     "alarm/" + kind,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	w := serve(t, srv, "/api/v1/alarm/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	got := decode[HistoryResponse](t, w)
	if got.Count != 4 || len(got.Entries) != 4 {
		t.Fatalf("count = %d (%d entries), want 4", got.Count, len(got.Entries))
	}
	if got.Entries[0].ID != "e-3" {
		t.Errorf("first entry = %q, want newest e-3", got.Entries[0].ID)
	}

	got = decode[HistoryResponse](t, serve(t, srv, "/api/v1/alarm/history?limit=2"))
	if got.Count != 2 {
		t.Errorf("limit=2 count = %d, want 2", got.Count)
	}
}

func TestAlarmHistory_Errors(t *testing.T) {
	tests := []struct {
		name     string
		repo     journal.Repository
		target   string
		wantCode int
	}{
		{name: "journal disabled", repo: nil, target: "/api/v1/alarm/history", wantCode: http.StatusServiceUnavailable},
		{name: "bad limit", repo: failingJournal{}, target: "/api/v1/alarm/history?limit=abc", wantCode: http.StatusBadRequest},
		{name: "zero limit", repo: failingJournal{}, target: "/api/v1/alarm/history?limit=0", wantCode: http.StatusBadRequest},
		{name: "query failure", repo: failingJournal{}, target: "/api/v1/alarm/history", wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, testServer(t, tt.repo), tt.target)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestServer_StartClose(t *testing.T) {
	srv := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first := testServer(t, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { first.Close() }) //nolint:errcheck // Test cleanup

	second := testServer(t, nil)
	_, port, _ := strings.Cut(first.Addr(), ":")
	fmt.Sscan(port, &second.cfg.Port) //nolint:errcheck // Port comes from a bound listener

	if err := second.Start(context.Background()); err == nil {
		second.Close() //nolint:errcheck // Test cleanup
		t.Error("Start() on a bound port = nil, want error")
	}
}

func TestClose_NotStarted(t *testing.T) {
	if err := testServer(t, nil).Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig, logging.Discard())

	client := newClient(hub, nil)
	hub.Register(client)

	hub.Broadcast(EventStateChanged, StateView{Armed: true, State: alarm.ModeArmed})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent || wsMsg.EventType != EventStateChanged {
			t.Errorf("message = %+v, want %s event", wsMsg, EventStateChanged)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(testWSConfig, logging.Discard())

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{},
	}
	hub.Register(client)

	hub.Broadcast(EventStateChanged, StateView{})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_SlowClientDropsMessages(t *testing.T) {
	hub := NewHub(testWSConfig, logging.Discard())
	client := newClient(hub, nil)
	hub.Register(client)

	for i := 0; i < wsSendBufferSize+10; i++ {
		hub.Broadcast(EventStateChanged, StateView{})
	}

	if got := len(client.send); got != wsSendBufferSize {
		t.Errorf("queued = %d, want %d", got, wsSendBufferSize)
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	a, b := newClient(hub, nil), newClient(hub, nil)
	hub.Register(a)
	hub.Register(b)
	if hub.ClientCount() != 2 {
		t.Errorf("after register count = %d, want 2", hub.ClientCount())
	}

	hub.Unregister(a)
	if hub.ClientCount() != 1 {
		t.Errorf("after unregister count = %d, want 1", hub.ClientCount())
	}

	cancel()
	<-done
	if hub.ClientCount() != 0 {
		t.Errorf("after shutdown count = %d, want 0", hub.ClientCount())
	}

	// Unregister after shutdown must not double-close.
	hub.Unregister(b)
}

// ─── WebSocket Connection Tests ────────────────────────────────────

// connectWebSocket dials the server and consumes the initial snapshot.
func connectWebSocket(t *testing.T, srv *Server) (*websocket.Conn, StateView) {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })

	msg := readMessage(t, ws)
	if msg.Type != WSTypeEvent || msg.EventType != EventStateChanged {
		t.Fatalf("first message = %+v, want state snapshot", msg)
	}
	return ws, payloadAs[StateView](t, msg)
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func payloadAs[T any](t *testing.T, msg WSMessage) T {
	t.Helper()
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return v
}

func TestWebSocket_SnapshotOnConnect(t *testing.T) {
	srv := testServer(t, nil)
	srv.Observe(transition(alarm.KindButton, alarm.State{}, alarm.State{Armed: true}, time.Now()))

	_, snap := connectWebSocket(t, srv)
	if !snap.Armed || snap.State != alarm.ModeArmed {
		t.Errorf("snapshot = %+v, want armed", snap)
	}
	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}
}

func TestWebSocket_OriginCheck(t *testing.T) {
	srv := testServer(t, nil)
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	tests := []struct {
		name   string
		origin string
		wantOK bool
	}{
		{name: "no origin", origin: "", wantOK: true},
		{name: "same origin", origin: ts.URL, wantOK: true},
		{name: "foreign page", origin: "http://evil.example", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}

			ws, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("Dial() error = %v", err)
				}
				ws.Close()
				return
			}

			if err == nil {
				ws.Close()
				t.Fatal("Dial() succeeded from a foreign origin")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
		})
	}
}

func TestWebSocket_BroadcastOnChange(t *testing.T) {
	srv := testServer(t, nil)
	ws, _ := connectWebSocket(t, srv)

	armed := alarm.State{Armed: true}
	srv.Observe(transition(alarm.KindButton, alarm.State{}, armed, time.Now()))
	// Unchanged state is not broadcast.
	srv.Observe(transition(alarm.KindArmed, armed, armed, time.Now()))
	srv.Observe(transition(alarm.KindPIR, armed, alarm.State{Armed: true, EntryAlarm: true}, time.Now()))

	first := payloadAs[StateView](t, readMessage(t, ws))
	if first.State != alarm.ModeArmed {
		t.Errorf("first broadcast state = %q, want armed", first.State)
	}
	second := payloadAs[StateView](t, readMessage(t, ws))
	if second.State != alarm.ModeAlarm {
		t.Errorf("second broadcast state = %q, want alarm", second.State)
	}
}

func TestWebSocket_Messages(t *testing.T) {
	tests := []struct {
		name     string
		send     any
		raw      string
		wantType string
		wantID   string
	}{
		{name: "ping", send: WSMessage{Type: WSTypePing, ID: "ping-1"}, wantType: WSTypePong, wantID: "ping-1"},
		{name: "invalid json", raw: "not json", wantType: WSTypeError},
		{name: "unknown type", send: WSMessage{Type: "arm", ID: "x"}, wantType: WSTypeError, wantID: "x"},
		{
			name:     "subscribe",
			send:     WSMessage{Type: WSTypeSubscribe, ID: "sub-1", Payload: WSSubscribePayload{Channels: []string{"other"}}},
			wantType: WSTypeResponse,
			wantID:   "sub-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, _ := connectWebSocket(t, testServer(t, nil))

			var err error
			if tt.raw != "" {
				err = ws.WriteMessage(websocket.TextMessage, []byte(tt.raw))
			} else {
				err = ws.WriteJSON(tt.send)
			}
			if err != nil {
				t.Fatalf("write: %v", err)
			}

			resp := readMessage(t, ws)
			if resp.Type != tt.wantType {
				t.Errorf("response type = %s, want %s", resp.Type, tt.wantType)
			}
			if resp.ID != tt.wantID {
				t.Errorf("response ID = %q, want %q", resp.ID, tt.wantID)
			}
		})
	}
}

func TestWebSocket_Unsubscribe(t *testing.T) {
	srv := testServer(t, nil)
	ws, _ := connectWebSocket(t, srv)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{EventStateChanged}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypeResponse {
		t.Fatalf("unsubscribe response type = %s, want response", resp.Type)
	}

	srv.Observe(transition(alarm.KindButton, alarm.State{}, alarm.State{Armed: true}, time.Now()))

	// A ping answered before any event shows the broadcast was not queued.
	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if resp := readMessage(t, ws); resp.Type != WSTypePong {
		t.Errorf("message after unsubscribe = %s, want pong only", resp.Type)
	}
}
