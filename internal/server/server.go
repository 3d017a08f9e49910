// Package server exposes the sync pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/raphaelgruber/spidersync/internal/metrics"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/raphaelgruber/spidersync/internal/service"
	"github.com/raphaelgruber/spidersync/internal/syncerr"
)

// MaxNotificationSize bounds the accepted request body.
const MaxNotificationSize = 100 << 20

// Usage is the reply to GET /.
const Usage = "use post method to upload a spider file"

// Processor runs a notification through the pipeline.
type Processor interface {
	Process(ctx context.Context, n *models.Notification) (*service.RunResult, error)
}

// RunLister lists tracked runs.
type RunLister interface {
	ListRuns() []service.RunInfo
}

// Server routes ingress requests to the pipeline.
type Server struct {
	processor Processor
	runs      RunLister
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// ErrorResponse is the JSON body of a failed upload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// New creates a server. runs and collector may be nil.
func New(p Processor, runs RunLister, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{processor: p, runs: runs, metrics: collector, logger: logger}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleUsage)
	mux.HandleFunc("POST /{$}", s.handleUpload)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /stats", s.handleStats)
	return LoggingMiddleware(s.logger, mux)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, Usage)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, MaxNotificationSize)
	defer body.Close()

	var n models.Notification
	if err := json.NewDecoder(body).Decode(&n); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("decode notification: %v", err)})
		return
	}

	if _, err := s.processor.Process(r.Context(), &n); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidNotification) {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, ErrorResponse{
			Error:   err.Error(),
			Kind:    string(syncerr.KindOf(err)),
			Subject: syncerr.SubjectOf(err),
		})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs := []service.RunInfo{}
	if s.runs != nil {
		runs = s.runs.ListRuns()
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}
