package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"notesd/internal/config"
	"notesd/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   cfg.Bind(),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleHealth)
	mux.HandleFunc("/webhook", srv.handleWebhook)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("webhook server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("webhook server listening", logging.String("address", listener.Addr().String()))
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

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthResponse struct {
	Status      string       `json:"status"`
	Mode        string       `json:"mode"`
	DataRepo    string       `json:"data_repo"`
	Branch      string       `json:"branch"`
	RepoValid   bool         `json:"repo_valid"`
	Revision    string       `json:"revision,omitempty"`
	Clean       bool         `json:"clean"`
	SyncEnabled bool         `json:"sync_enabled"`
	Journal     journalCount `json:"journal"`
}

type journalCount struct {
	Total       int `json:"total"`
	Pushed      int `json:"pushed"`
	PushPending int `json:"push_pending"`
	Rejected    int `json:"rejected"`
	Failed      int `json:"failed"`
	InFlight    int `json:"in_flight"`
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	d := s.daemon
	payload := healthResponse{
		Status:      "ok",
		Mode:        d.mode(),
		DataRepo:    d.cfg.Paths.DataRepo,
		Branch:      d.cfg.Git.Branch,
		RepoValid:   d.repo.Valid(),
		SyncEnabled: d.cfg.SyncEnabled(),
	}
	if payload.RepoValid {
		if head, err := d.repo.Head(); err == nil {
			payload.Revision = head.String()
		}
		if clean, err := d.repo.IsClean(); err == nil {
			payload.Clean = clean
		}
	}
	if summary, err := d.store.Summarize(r.Context()); err == nil {
		payload.Journal = journalCount{
			Total:       summary.Total,
			Pushed:      summary.Pushed,
			PushPending: summary.PushPending,
			Rejected:    summary.Rejected,
			Failed:      summary.Failed,
			InFlight:    summary.InFlight,
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "webhook-server"))
	}
	return logging.NewNop()
}
