package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"warden/internal/api"
	"warden/internal/orchestrator"
	"warden/pkg/logging"
)

// requestTimeout bounds how long a request waits for the core loop.
const requestTimeout = 30 * time.Second

// ServerConfig configures the control server.
type ServerConfig struct {
	SocketPath string
	Service    Service
	// Stats serves /v1/processes/{pid}; nil disables the route.
	Stats StatsFunc
	// Metrics serves /metrics; nil disables the route.
	Metrics http.Handler
}

// Server is the HTTP/JSON control API on a unix socket.
type Server struct {
	config   ServerConfig
	listener net.Listener
	server   *http.Server
	errCh    chan error
}

// NewServer creates a control server. Nothing listens until Start.
func NewServer(cfg ServerConfig) *Server {
	return &Server{config: cfg, errCh: make(chan error, 1)}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/services", s.handleStatusAll)
	mux.HandleFunc("GET /v1/services/{name}", s.handleStatus)
	mux.HandleFunc("POST /v1/services/{name}/start", s.handleAction("start", s.config.Service.Start))
	mux.HandleFunc("POST /v1/services/{name}/stop", s.handleAction("stop", s.config.Service.Stop))
	mux.HandleFunc("POST /v1/services/{name}/restart", s.handleAction("restart", s.config.Service.Restart))
	mux.HandleFunc("GET /v1/definitions", s.handleList)
	mux.HandleFunc("POST /v1/reload", s.handleGlobal("reload", s.config.Service.Reload))
	mux.HandleFunc("POST /v1/dump", s.handleGlobal("dump", s.config.Service.DumpStatus))
	if s.config.Stats != nil {
		mux.HandleFunc("GET /v1/processes/{pid}", s.handleProcess)
	}
	if s.config.Metrics != nil {
		mux.Handle("GET /metrics", s.config.Metrics)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

// Start listens on the socket and serves in the background. A stale socket
// file from an earlier run is replaced.
func (s *Server) Start(ctx context.Context) error {
	path := s.config.SocketPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create control socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale control socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to restrict control socket: %w", err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("Control", err, "Control server stopped")
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()

	logging.Info("Control", "Listening on %s", path)
	return nil
}

// Errors delivers a fatal serve error.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Stop shuts the server down and removes the socket.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	if rerr := os.Remove(s.config.SocketPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		logging.Warn("Control", "Failed to remove control socket: %v", rerr)
	}
	s.server = nil
	logging.Info("Control", "Stopped")
	return err
}

func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snaps, err := s.config.Service.StatusAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if snaps == nil {
		snaps = []api.StateSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := s.config.Service.Status(ctx, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	infos, err := s.config.Service.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if infos == nil {
		infos = []api.ServiceInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleAction(action string, fn func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		name := r.PathValue("name")
		logging.Debug("Control", "%s %s", action, name)
		if err := fn(ctx, name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ActionResponse{Action: action, Service: name, OK: true})
	}
}

func (s *Server) handleGlobal(action string, fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		logging.Debug("Control", "%s", action)
		if err := fn(ctx); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ActionResponse{Action: action, OK: true})
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(r.PathValue("pid"))
	if err != nil || pid <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid pid", Kind: KindInvalid})
		return
	}
	stats, err := s.config.Stats(pid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Kind: KindInternal}
	status := http.StatusInternalServerError

	var running *api.AlreadyRunningError
	switch {
	case api.IsNotFound(err):
		status, resp.Kind = http.StatusNotFound, KindNotFound
	case errors.As(err, &running):
		status, resp.Kind = http.StatusConflict, KindAlreadyRunning
		resp.Service, resp.State = running.Service, running.State
	case errors.Is(err, api.ErrShuttingDown), errors.Is(err, orchestrator.ErrStopInProgress):
		status, resp.Kind = http.StatusServiceUnavailable, KindUnavailable
	case api.IsCycle(err), api.IsUnknownDependency(err), api.IsConfigError(err):
		status, resp.Kind = http.StatusUnprocessableEntity, KindInvalid
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, resp)
}
