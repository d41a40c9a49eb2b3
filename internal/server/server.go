// Package server exposes the trigger webhook and operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/voicecal/voicecal-go/internal/db"
	"github.com/voicecal/voicecal-go/internal/metrics"
	"github.com/voicecal/voicecal-go/internal/models"
)

// Store is the slice of the database layer the handlers need.
type Store interface {
	CreateJob(ctx context.Context, in db.CreateJobInput) (*models.VoiceJob, error)
	GetJob(ctx context.Context, id string) (*models.VoiceJob, error)
	ListJobs(ctx context.Context, limit int) ([]models.VoiceJob, error)
}

// Processor runs a job to a terminal status.
type Processor interface {
	Process(ctx context.Context, jobID string) (*models.VoiceJob, error)
}

// Server hosts the trigger webhook. Job creation returns immediately;
// the pipeline runs on a detached context so a dropped trigger
// connection does not abort processing.
type Server struct {
	store     Store
	processor Processor
	metrics   *metrics.Collector
	logger    *slog.Logger

	httpServer *http.Server
	inflight   sync.WaitGroup
}

// New creates the trigger server listening on addr.
func New(addr string, store Store, processor Processor, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	s := &Server{
		store:     store,
		processor: processor,
		metrics:   collector,
		logger:    logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           RequestMiddleware(logger)(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then drains in-flight jobs.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("trigger server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("draining in-flight jobs")
	s.inflight.Wait()
	return nil
}

// Handler returns the routed handler with middleware applied. Testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	mux.HandleFunc("POST /v1/jobs/{id}/process", s.handleProcessJob)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /statsz", s.handleStats)
	return mux
}

// createJobRequest is the trigger payload.
type createJobRequest struct {
	AudioURL   string                  `json:"audio_url"`
	UserID     string                  `json:"user_id"`
	CalendarID *string                 `json:"calendar_id,omitempty"`
	Labels     []models.LabelCandidate `json:"labels,omitempty"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AudioURL == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "audio_url and user_id are required")
		return
	}

	job, err := s.store.CreateJob(r.Context(), db.CreateJobInput{
		AudioURL:   req.AudioURL,
		UserID:     req.UserID,
		CalendarID: req.CalendarID,
		Labels:     req.Labels,
	})
	if err != nil {
		s.logger.Error("create job failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create job")
		return
	}

	jobID := models.MustRecordIDString(job.ID)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if _, err := s.processor.Process(context.WithoutCancel(r.Context()), jobID); err != nil {
			s.logger.Error("async processing ended failed", "job", jobID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, jobResponse(job))
}

func (s *Server) handleProcessJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := s.processor.Process(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		// The job reached failed; report its terminal record.
		if job != nil {
			writeJSON(w, http.StatusOK, jobResponse(job))
			return
		}
		s.logger.Error("process trigger failed", "job", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load job")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), 50)
	if err != nil {
		s.logger.Error("list jobs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list jobs")
		return
	}

	out := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobResponse(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// jobResponse shapes a job record for the API. The record id is
// flattened to its string form.
func jobResponse(job *models.VoiceJob) map[string]any {
	resp := map[string]any{
		"id":        models.MustRecordIDString(job.ID),
		"audio_url": job.AudioURL,
		"user_id":   job.UserID,
		"status":    job.Status,
		"created":   job.Created,
		"updated":   job.Updated,
	}
	if job.CalendarID != nil {
		resp["calendar_id"] = *job.CalendarID
	}
	if len(job.Labels) > 0 {
		resp["labels"] = job.Labels
	}
	if job.Transcript != nil {
		resp["transcript"] = *job.Transcript
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.ErrorMessage != nil {
		resp["error_message"] = *job.ErrorMessage
	}
	if job.FailureKind != nil {
		resp["failure_kind"] = *job.FailureKind
	}
	if job.EventID != nil {
		resp["event_id"] = *job.EventID
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
