// Package app assembles the coach services from configuration. The CLI, the
// daemon and the queue worker all start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/coach/internal/config"
	"github.com/felixgeelhaar/coach/internal/engine"
	"github.com/felixgeelhaar/coach/internal/exercise"
	"github.com/felixgeelhaar/coach/internal/feedback"
	"github.com/felixgeelhaar/coach/internal/metrics"
	"github.com/felixgeelhaar/coach/internal/prereq"
	"github.com/felixgeelhaar/coach/internal/reinforcement"
	"github.com/felixgeelhaar/coach/internal/runner"
	"github.com/felixgeelhaar/coach/internal/sandbox"
	"github.com/felixgeelhaar/coach/internal/session"
	"github.com/felixgeelhaar/coach/internal/storage/postgres"
	"github.com/felixgeelhaar/coach/internal/storage/redisstore"
	"github.com/felixgeelhaar/coach/internal/storage/sqlite"
	"github.com/felixgeelhaar/coach/internal/transcript"
)

// sandboxReapInterval is how often idle Docker sandboxes are reaped.
const sandboxReapInterval = time.Minute

// lockTTL bounds how long a crashed process can hold a session lock.
const lockTTL = 2 * time.Minute

// App holds the wired services.
type App struct {
	Config    *config.LocalConfig
	Dir       string
	Questions *exercise.Registry
	Sessions  *session.Service
	Engine    *engine.Engine
	Metrics   *metrics.Recorder
	// Sandboxes is nil unless the Docker executor is in use.
	Sandboxes *sandbox.Manager

	closers []io.Closer
}

// stores groups the persistence backends chosen by the storage driver.
type stores struct {
	sessions    session.Store
	drafts      session.DraftStore
	transcripts transcript.Store
	sandboxes   sandbox.Store
	locker      engine.Locker
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New builds the application for cfg with dir as the data directory. The
// context bounds connection setup only.
func New(ctx context.Context, cfg *config.LocalConfig, dir string) (*App, error) {
	a := &App{Config: cfg, Dir: dir, Metrics: metrics.NewRecorder()}

	questionsPath := cfg.Questions.Path
	if questionsPath == "" {
		questionsPath = filepath.Join(dir, "questions")
	}
	a.Questions = exercise.NewRegistry(exercise.NewLoader(questionsPath))
	if err := a.Questions.Load(); err != nil {
		return nil, err
	}

	st, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	adapter := a.newRunner(st.sandboxes)

	a.Sessions = session.NewService(a.Questions, st.sessions, st.transcripts, st.drafts)
	a.Engine = engine.New(engine.Config{
		UnfamiliarThreshold: cfg.Feedback.UnfamiliarThreshold,
	}, engine.Deps{
		Questions:   a.Questions,
		Sessions:    st.sessions,
		Transcripts: st.transcripts,
		Checker:     prereq.NewChecker(prereq.Config{SupportedLibraries: cfg.Feedback.SupportedLibraries}),
		Runner:      adapter,
		Selector: feedback.NewSelector(feedback.Config{
			TimeoutSeconds:     cfg.Runner.TimeoutSeconds,
			SupportedLibraries: cfg.Feedback.SupportedLibraries,
		}),
		Tracker:  reinforcement.NewTracker(),
		Locker:   st.locker,
		Observer: a.Metrics,
	})

	questions, tasks := a.Questions.Counts()
	slog.Info("coach initialized",
		"storage", cfg.Storage.Driver,
		"executor", cfg.Runner.Executor,
		"questions", questions,
		"tasks", tasks,
	)
	return a, nil
}

func (a *App) openStores(ctx context.Context) (*stores, error) {
	cfg := a.Config.Storage
	switch cfg.Driver {
	case "file":
		sessions, err := session.NewFileStore(a.Dir)
		if err != nil {
			return nil, fmt.Errorf("create session store: %w", err)
		}
		transcripts, err := transcript.NewFileStore(a.Dir)
		if err != nil {
			return nil, fmt.Errorf("create transcript store: %w", err)
		}
		return &stores{sessions: sessions, drafts: sessions, transcripts: transcripts, sandboxes: sandbox.NewMemoryStore()}, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return &stores{
			sessions:    sqlite.NewSessionStore(db),
			drafts:      sqlite.NewDraftStore(db),
			transcripts: sqlite.NewTranscriptStore(db),
			sandboxes:   sqlite.NewSandboxStore(db),
		}, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &stores{
			sessions:    postgres.NewSessionStore(db),
			drafts:      postgres.NewDraftStore(db),
			transcripts: postgres.NewTranscriptStore(db),
			sandboxes:   sandbox.NewMemoryStore(),
		}, nil

	case "redis":
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return &stores{
			sessions:    redisstore.NewSessionStore(client),
			drafts:      redisstore.NewDraftStore(client),
			transcripts: redisstore.NewTranscriptStore(client),
			sandboxes:   sandbox.NewMemoryStore(),
			locker:      redisstore.NewLocker(client, lockTTL),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// newRunner builds the execution adapter. The Docker executor needs a
// reachable daemon; when it is missing the local executor is used instead.
func (a *App) newRunner(sandboxes sandbox.Store) runner.Adapter {
	rc := a.Config.Runner
	var executor runner.Executor = runner.NewLocalExecutor(rc.Python)

	if rc.Executor == "docker" {
		backend, err := sandbox.NewDockerBackend(context.Background())
		if err != nil {
			slog.Warn("docker executor not available, using local executor", "error", err)
		} else {
			manager := sandbox.NewManager(sandboxes, backend, rc.Docker.SandboxConfig())
			loopCtx, cancel := context.WithCancel(context.Background())
			manager.StartReaper(loopCtx, sandboxReapInterval)
			a.closers = append(a.closers, closerFunc(func() error {
				cancel()
				closeCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
				defer done()
				return manager.Close(closeCtx)
			}))
			a.Sandboxes = manager
			executor = runner.NewDockerExecutor(manager)
		}
	}

	resilient := runner.NewResilientExecutor(executor, runner.DefaultResilientConfig())
	a.closers = append(a.closers, resilient)
	return runner.NewService(rc.RunnerServiceConfig(), resilient)
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
