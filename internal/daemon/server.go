// Package daemon serves the coach HTTP API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/engine"
	"github.com/felixgeelhaar/coach/internal/metrics"
	"github.com/felixgeelhaar/coach/internal/queue"
	"github.com/felixgeelhaar/coach/internal/session"
)

// maxBodyBytes bounds request bodies; submissions are small source files.
const maxBodyBytes = 1 << 20

// QuestionCatalog lists and fetches questions
type QuestionCatalog interface {
	List() []*domain.Question
	Get(id string) (*domain.Question, error)
}

// Submitter evaluates a submission synchronously
type Submitter interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (*engine.Outcome, error)
}

// Enqueuer hands a submission to the worker queue
type Enqueuer interface {
	PublishSubmission(ctx context.Context, job *queue.SubmissionJob) error
}

// Server represents the coach daemon HTTP server
type Server struct {
	server *http.Server
	router *http.ServeMux

	questions QuestionCatalog
	sessions  *session.Service
	engine    Submitter
	jobs      Enqueuer
	metrics   *metrics.Recorder
	version   string
}

// ServerConfig holds the dependencies of a server
type ServerConfig struct {
	Addr      string
	Version   string
	Questions QuestionCatalog
	Sessions  *session.Service
	Engine    Submitter
	Jobs      Enqueuer          // Optional; enables async submissions
	Metrics   *metrics.Recorder // Optional; enables /metrics
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		questions: cfg.Questions,
		sessions:  cfg.Sessions,
		engine:    cfg.Engine,
		jobs:      cfg.Jobs,
		metrics:   cfg.Metrics,
		version:   cfg.Version,
	}

	s.setupRoutes()

	mws := []middleware{withRequestID, accessLog, recoverPanic}
	if s.metrics != nil {
		mws = append(mws, instrument(s.metrics))
	}
	handler := chain(s.router, mws...)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /v1/health", s.handleHealth)

	s.router.HandleFunc("GET /v1/questions", s.handleListQuestions)
	s.router.HandleFunc("GET /v1/questions/{id}", s.handleGetQuestion)

	s.router.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.router.HandleFunc("POST /v1/sessions/{id}/submissions", s.handleSubmit)
	s.router.HandleFunc("GET /v1/sessions/{id}/transcript", s.handleTranscript)

	s.router.HandleFunc("PUT /v1/drafts/{question}/{language}", s.handleSaveDraft)
	s.router.HandleFunc("GET /v1/drafts/{question}/{language}", s.handleLoadDraft)
	s.router.HandleFunc("DELETE /v1/drafts/{question}/{language}", s.handleClearDraft)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting coach daemon", "addr", s.server.Addr, "async", s.jobs != nil)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Question handlers

type taskView struct {
	ID           string   `json:"id"`
	Instructions []string `json:"instructions"`
}

type questionView struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Languages []domain.Language `json:"languages"`
	Tasks     []taskView        `json:"tasks,omitempty"`
}

// newQuestionView exposes a question without its tests.
func newQuestionView(q *domain.Question, withTasks bool) questionView {
	v := questionView{ID: q.ID, Title: q.Title}
	for lang := range q.StarterCode {
		v.Languages = append(v.Languages, lang)
	}
	sort.Slice(v.Languages, func(i, j int) bool { return v.Languages[i] < v.Languages[j] })
	if withTasks {
		for _, t := range q.Tasks {
			v.Tasks = append(v.Tasks, taskView{ID: t.ID, Instructions: t.Instructions})
		}
	}
	return v
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.questions.List()
	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, newQuestionView(q, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": views})
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.questions.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuestionView(q, true))
}

// Session handlers

type startedView struct {
	Session      *session.Session `json:"session"`
	Code         string           `json:"code"`
	Instructions []string         `json:"instructions"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID string `json:"question_id"`
		Language   string `json:"language,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.QuestionID == "" {
		writeJSONError(w, http.StatusBadRequest, "question_id is required", nil)
		return
	}

	started, err := s.sessions.Create(r.Context(), session.CreateRequest{
		QuestionID: req.QuestionID,
		Language:   req.Language,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, startedView{
		Session:      started.Session,
		Code:         started.Code,
		Instructions: started.Instructions,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req struct {
		Code               string `json:"code"`
		LanguageUnfamiliar bool   `json:"language_unfamiliar,omitempty"`
		Async              bool   `json:"async,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if req.Async {
		if s.jobs == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "submission queue not configured", nil)
			return
		}
		if _, err := s.sessions.Get(r.Context(), sessionID); err != nil {
			s.fail(w, r, err)
			return
		}
		job := queue.NewSubmissionJob(sessionID, req.Code, req.LanguageUnfamiliar)
		if err := s.jobs.PublishSubmission(r.Context(), job); err != nil {
			writeJSONError(w, http.StatusBadGateway, "failed to enqueue submission", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID})
		return
	}

	outcome, err := s.engine.Submit(r.Context(), engine.SubmitRequest{
		SessionID:          sessionID,
		Code:               req.Code,
		LanguageUnfamiliar: req.LanguageUnfamiliar,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	tr, err := s.sessions.Transcript(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// Draft handlers

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.sessions.SaveDraft(r.Context(), r.PathValue("question"), r.PathValue("language"), req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true})
}

func (s *Server) handleLoadDraft(w http.ResponseWriter, r *http.Request) {
	code, err := s.sessions.LoadDraft(r.Context(), r.PathValue("question"), r.PathValue("language"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": code})
}

func (s *Server) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.ClearDraft(r.Context(), r.PathValue("question"), r.PathValue("language")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// Helper methods

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrDraftNotFound),
		errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedLanguage),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrSessionCompleted):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Unexpected errors are logged and hidden
// from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		loggerFrom(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, status, "internal error", nil)
		return
	}
	writeJSONError(w, status, http.StatusText(status), err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeJSONError writes {"error", "status", "details"}; details only when
// err is set.
func writeJSONError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{"error": message, "status": status}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(w, status, body)
}
