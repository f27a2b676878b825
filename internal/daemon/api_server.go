package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"driftq/internal/config"
	"driftq/internal/logging"
	"driftq/internal/network"
	"driftq/internal/offline"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// enqueueRequest is the POST /api/queue payload.
type enqueueRequest struct {
	Descriptor string         `json:"descriptor"`
	Variables  map[string]any `json:"variables,omitempty"`
	Priority   string         `json:"priority,omitempty"`
	Category   string         `json:"category,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
	SideEffect string         `json:"side_effect,omitempty"`
}

type enqueueResponse struct {
	ID string `json:"id"`
}

type queueListResponse struct {
	Operations []offline.Operation `json:"operations"`
	Stats      offline.Stats       `json:"stats"`
}

type networkResponse struct {
	Quality *network.Quality         `json:"quality,omitempty"`
	Stats   network.Stats            `json:"stats"`
	Events  []network.Event          `json:"events"`
	Tests   []network.ConnectionTest `json:"tests"`
}

type statusResponse struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	Online       bool             `json:"online"`
	StoreDBPath  string           `json:"store_db_path"`
	LockFilePath string           `json:"lock_file_path"`
	Queue        offline.Stats    `json:"queue"`
	Network      *network.Quality `json:"network,omitempty"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.HandleFunc("/api/queue/", srv.handleQueueItem)
	mux.HandleFunc("/api/queue/sync", srv.handleSync)
	mux.HandleFunc("/api/network", srv.handleNetwork)
	mux.HandleFunc("/api/network/test", srv.handleNetworkTest)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, statusResponse{
		Running:      status.Running,
		PID:          status.PID,
		Online:       status.Online,
		StoreDBPath:  status.StoreDBPath,
		LockFilePath: status.LockFilePath,
		Queue:        status.Queue,
		Network:      status.Network,
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := s.daemon.queue
		operations := q.Operations()
		if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
			operations = q.OperationsByCategory(category)
		} else if value := strings.TrimSpace(r.URL.Query().Get("priority")); value != "" {
			priority, ok := offline.ParsePriority(value)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "invalid priority")
				return
			}
			operations = q.OperationsByPriority(priority)
		}
		s.writeJSON(w, http.StatusOK, queueListResponse{Operations: operations, Stats: q.Stats()})
	case http.MethodPost:
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Descriptor) == "" {
			s.writeError(w, http.StatusBadRequest, "descriptor is required")
			return
		}
		priority, _ := offline.ParsePriority(req.Priority)
		id, err := s.daemon.queue.Enqueue(r.Context(), req.Descriptor, req.Variables, offline.EnqueueOptions{
			Priority:   priority,
			Category:   req.Category,
			MaxRetries: req.MaxRetries,
			SideEffect: req.SideEffect,
		})
		if err != nil {
			if errors.Is(err, offline.ErrQueueFull) {
				s.writeError(w, http.StatusConflict, err.Error())
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusAccepted, enqueueResponse{ID: id})
	case http.MethodDelete:
		s.daemon.queue.Clear(r.Context())
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "queue operation not found")
		return
	}
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.daemon.queue.Dequeue(id) {
		s.writeError(w, http.StatusNotFound, "queue operation not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.daemon.queue.ForceSync(r.Context()); err != nil {
		if errors.Is(err, offline.ErrOffline) {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

func (s *apiServer) handleNetwork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	mon := s.daemon.monitor
	var quality *network.Quality
	if current, ok := mon.CurrentQuality(); ok {
		quality = &current
	}
	s.writeJSON(w, http.StatusOK, networkResponse{
		Quality: quality,
		Stats:   mon.Stats(),
		Events:  mon.Events(),
		Tests:   mon.Tests(),
	})
}

func (s *apiServer) handleNetworkTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.monitor.TestConnectionNow(r.Context()))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
