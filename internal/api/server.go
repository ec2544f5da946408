package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-alarm/internal/alarm"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-alarm/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports broker connectivity. Satisfied by *mqtt.Client.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Journal journal.Repository // optional; history answers 503 without it
	MQTT    ConnectionStatus   // optional; health reports mqtt=false without it
	Version string
}

// Server is the status HTTP API.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub, and
// implements alarm.Observer to track the controller's state.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	journal journal.Repository
	mqtt    ConnectionStatus
	version string
	hub     *Hub

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // stops the hub on Close()

	// mu guards the snapshot and orders broadcasts with WebSocket registration.
	mu        sync.RWMutex
	state     alarm.State
	updatedAt time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not listening until Start() is called, but it observes
// transitions from the moment it is created.
//
// Parameters:
//   - deps: Logger is required; Journal and MQTT are optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		journal: deps.Journal,
		mqtt:    deps.MQTT,
		version: deps.Version,
		hub:     NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// Parameters:
//   - ctx: Parent context for the WebSocket hub
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Observe records t as the current state and broadcasts state changes.
// Boot always counts as a change.
func (s *Server) Observe(t alarm.Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = t.After
	if t.Kind != alarm.KindBoot && !t.Changed() {
		return
	}
	s.updatedAt = t.At

	s.hub.Broadcast(EventStateChanged, s.viewLocked())
}

// snapshot returns the current state view.
func (s *Server) snapshot() StateView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *Server) viewLocked() StateView {
	v := StateView{
		Armed:      s.state.Armed,
		EntryAlarm: s.state.EntryAlarm,
		State:      s.state.Mode(),
	}
	if !s.updatedAt.IsZero() {
		v.UpdatedAt = s.updatedAt.UTC().Format(time.RFC3339Nano)
	}
	return v
}
