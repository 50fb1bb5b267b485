// Package statusbridge exposes the current session state over a small
// read-only HTTP server so dashboards can poll it.
package statusbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// ServerStatus is reported on /health.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ErrDisabled is returned by Start when the bridge is turned off.
var ErrDisabled = errors.New("statusbridge: server disabled")

// Source provides the state served on /state.
type Source interface {
	Snapshot() Snapshot
}

// Server wraps the HTTP listener and handlers backing the bridge.
type Server struct {
	settings Settings
	source   Source
	logger   *slog.Logger
	clock    func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the uptime clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a bridge server reading from source.
func NewServer(settings Settings, source Source, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		source:   source,
		logger:   slog.Default(),
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the bridge routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/state", s.handleState)
	return mux
}

// Start listens on the configured address and serves in the background.
// It returns ErrDisabled when the bridge is turned off.
func (s *Server) Start(ctx context.Context) error {
	if !s.settings.Enabled {
		return ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("statusbridge: server already started")
	}
	ln, err := net.Listen("tcp", s.settings.Addr())
	if err != nil {
		return fmt.Errorf("statusbridge: listen %s: %w", s.settings.Addr(), err)
	}
	rw, idle := s.settings.timeouts()
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: rw,
		ReadTimeout:       rw,
		WriteTimeout:      rw,
		IdleTimeout:       idle,
	}
	if ctx != nil {
		srv.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.listener, s.server = ln, srv
	s.startTime = s.clock()
	s.status = StatusReady
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("statusbridge.serve", "error", err)
		}
	}()
	s.logger.Info("statusbridge.listening", "addr", ln.Addr().String())
	return nil
}

// Shutdown drains the server. A nil ctx waits at most two seconds.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return "http://" + s.settings.Addr()
	}
	return "http://" + s.listener.Addr().String()
}

func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		UptimeSeconds: s.uptimeSeconds(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	var snap Snapshot
	if s.source != nil {
		snap = s.source.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

func allowRead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
