package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/engine"
	"github.com/felixgeelhaar/coach/internal/session"
)

// QuestionCatalog lists and fetches questions
type QuestionCatalog interface {
	List() []*domain.Question
	Get(id string) (*domain.Question, error)
}

// Submitter evaluates a submission
type Submitter interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (*engine.Outcome, error)
}

// Server wraps the MCP server with coach functionality
type Server struct {
	mcpServer *server.Server
	questions QuestionCatalog
	sessions  *session.Service
	engine    Submitter
}

// Config contains configuration for the MCP server
type Config struct {
	Version   string
	Questions QuestionCatalog
	Sessions  *session.Service
	Engine    Submitter
}

// NewServer creates a new MCP server for coach
func NewServer(cfg Config) *Server {
	s := &Server{
		questions: cfg.Questions,
		sessions:  cfg.Sessions,
		engine:    cfg.Engine,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "coach",
		Version: version,
	}, server.WithInstructions(`
Coach evaluates practice solutions and answers with one piece of feedback at a time.
Feedback never reveals the solution; it points at the next thing to look at.

Available tools:
- coach_questions: List the available questions
- coach_start: Start a session on a question
- coach_submit: Submit code for the current task
- coach_transcript: Show the feedback history of a session
- coach_stop: End a session
`))

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("coach_questions").
		Description("List the available questions and their languages.").
		Handler(s.handleQuestions)

	s.mcpServer.Tool("coach_start").
		Description("Start a session on a question. Returns the starting code and the first task.").
		Handler(s.handleStart)

	s.mcpServer.Tool("coach_submit").
		Description("Submit code for the current task and get one piece of feedback.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("coach_transcript").
		Description("Show the feedback history of a session.").
		Handler(s.handleTranscript)

	s.mcpServer.Tool("coach_stop").
		Description("End a coach session.").
		Handler(s.handleStop)
}

// Input/Output types for tools

type QuestionsInput struct{}

type QuestionSummary struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Languages []string `json:"languages"`
	Tasks     int      `json:"tasks"`
}

type QuestionsOutput struct {
	Questions []QuestionSummary `json:"questions"`
}

type StartInput struct {
	QuestionID string `json:"question_id" jsonschema:"description=Question ID from coach_questions"`
	Language   string `json:"language,omitempty" jsonschema:"description=Solution language (default: python)"`
}

type StartOutput struct {
	SessionID    string   `json:"session_id"`
	QuestionID   string   `json:"question_id"`
	Language     string   `json:"language"`
	Code         string   `json:"code"`
	Instructions []string `json:"instructions"`
}

type SubmitInput struct {
	SessionID          string `json:"session_id" jsonschema:"description=Session ID from coach_start"`
	Code               string `json:"code" jsonschema:"description=Complete source of the solution"`
	LanguageUnfamiliar bool   `json:"language_unfamiliar,omitempty" jsonschema:"description=Ask for a primer on the solution language"`
}

type SubmitOutput struct {
	Category         string   `json:"category"`
	Feedback         string   `json:"feedback"`
	Reinforcement    []string `json:"reinforcement,omitempty"`
	TaskIndex        int      `json:"task_index"`
	Advanced         bool     `json:"advanced"`
	NextInstructions []string `json:"next_instructions,omitempty"`
	Completed        bool     `json:"completed"`
}

type TranscriptInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from coach_start"`
}

type TranscriptEntry struct {
	TaskIndex int    `json:"task_index"`
	Category  string `json:"category"`
	Feedback  string `json:"feedback"`
}

type TranscriptOutput struct {
	SessionID string            `json:"session_id"`
	Status    string            `json:"status"`
	TaskIndex int               `json:"task_index"`
	Entries   []TranscriptEntry `json:"entries"`
}

type StopInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID to end"`
}

type StopOutput struct {
	Message string `json:"message"`
}

// Tool handlers

func (s *Server) handleQuestions(ctx context.Context, input QuestionsInput) (QuestionsOutput, error) {
	out := QuestionsOutput{Questions: []QuestionSummary{}}
	for _, q := range s.questions.List() {
		langs := make([]string, 0, len(q.StarterCode))
		for lang := range q.StarterCode {
			langs = append(langs, string(lang))
		}
		sort.Strings(langs)
		out.Questions = append(out.Questions, QuestionSummary{
			ID:        q.ID,
			Title:     q.Title,
			Languages: langs,
			Tasks:     len(q.Tasks),
		})
	}
	return out, nil
}

func (s *Server) handleStart(ctx context.Context, input StartInput) (StartOutput, error) {
	started, err := s.sessions.Create(ctx, session.CreateRequest{
		QuestionID: input.QuestionID,
		Language:   input.Language,
	})
	if err != nil {
		return StartOutput{}, fmt.Errorf("failed to create session: %w", err)
	}

	return StartOutput{
		SessionID:    started.Session.ID,
		QuestionID:   started.Session.QuestionID,
		Language:     string(started.Session.Language),
		Code:         started.Code,
		Instructions: started.Instructions,
	}, nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	if strings.TrimSpace(input.Code) == "" {
		return SubmitOutput{}, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	outcome, err := s.engine.Submit(ctx, engine.SubmitRequest{
		SessionID:          input.SessionID,
		Code:               input.Code,
		LanguageUnfamiliar: input.LanguageUnfamiliar,
	})
	if err != nil {
		return SubmitOutput{}, fmt.Errorf("submit failed: %w", err)
	}

	return SubmitOutput{
		Category:         string(outcome.Feedback.Category),
		Feedback:         renderFeedback(outcome.Feedback),
		Reinforcement:    outcome.Reinforcement,
		TaskIndex:        outcome.TaskIndex,
		Advanced:         outcome.Advanced,
		NextInstructions: outcome.NextInstructions,
		Completed:        outcome.Completed,
	}, nil
}

func (s *Server) handleTranscript(ctx context.Context, input TranscriptInput) (TranscriptOutput, error) {
	sess, err := s.sessions.Get(ctx, input.SessionID)
	if err != nil {
		return TranscriptOutput{}, fmt.Errorf("session not found: %w", err)
	}
	transcript, err := s.sessions.Transcript(ctx, input.SessionID)
	if err != nil {
		return TranscriptOutput{}, fmt.Errorf("load transcript: %w", err)
	}

	out := TranscriptOutput{
		SessionID: sess.ID,
		Status:    string(sess.Status),
		TaskIndex: sess.TaskIndex,
		Entries:   []TranscriptEntry{},
	}
	for _, snap := range transcript.Snapshots() {
		out.Entries = append(out.Entries, TranscriptEntry{
			TaskIndex: snap.TaskIndex,
			Category:  string(snap.Category()),
			Feedback:  renderFeedback(snap.Feedback),
		})
	}
	return out, nil
}

func (s *Server) handleStop(ctx context.Context, input StopInput) (StopOutput, error) {
	if err := s.sessions.Delete(ctx, input.SessionID); err != nil {
		return StopOutput{}, fmt.Errorf("failed to delete session: %w", err)
	}

	return StopOutput{
		Message: "Session ended successfully",
	}, nil
}

// renderFeedback flattens feedback paragraphs into plain text. Code and
// output paragraphs are fenced so clients render them verbatim.
func renderFeedback(f *domain.Feedback) string {
	if f == nil {
		return ""
	}
	parts := make([]string, 0, len(f.Paragraphs))
	for _, p := range f.GetParagraphs() {
		switch p.Type {
		case domain.ParagraphText:
			parts = append(parts, p.Content)
		default:
			parts = append(parts, "```\n"+p.Content+"\n```")
		}
	}
	return strings.Join(parts, "\n\n")
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
