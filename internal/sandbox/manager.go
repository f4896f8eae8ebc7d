package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// removeTimeout bounds container removal after the caller's context ended.
const removeTimeout = 10 * time.Second

// Spec describes a container to start.
type Spec struct {
	SessionID string
	Image     string
	Limits    Limits
}

// Backend is the container runtime a Manager drives.
type Backend interface {
	Start(ctx context.Context, spec Spec) (containerID string, err error)
	Upload(ctx context.Context, containerID string, files map[string]string) error
	// Exec runs cmd in the work directory, keeping at most limit bytes of
	// each output stream.
	Exec(ctx context.Context, containerID string, cmd []string, limit int) (*Output, error)
	Remove(ctx context.Context, containerID string) error
	// Containers lists every sandbox container the runtime knows about.
	Containers(ctx context.Context) ([]string, error)
	Close() error
}

// Manager gives each session one container, started on its first run,
// reused across runs and removed once idle past the TTL. Runs of one
// session are serialized; different sessions proceed in parallel.
type Manager struct {
	store   Store
	backend Backend
	cfg     Config
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
	owned    map[string]struct{}
}

// NewManager creates a manager. Zero config fields take DefaultConfig values.
func NewManager(store Store, backend Backend, cfg Config) *Manager {
	return &Manager{
		store:    store,
		backend:  backend,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		sessions: make(map[string]*sync.Mutex),
		owned:    make(map[string]struct{}),
	}
}

func (m *Manager) lockSession(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.sessions[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.sessions[sessionID] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Run copies files into the session's sandbox and executes cmd there. If ctx
// ends mid-run the container is left in an unknown state, so it is removed
// and the session's next Run starts a fresh one.
func (m *Manager) Run(ctx context.Context, sessionID string, files map[string]string, cmd []string) (*Output, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	sb, err := m.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.backend.Upload(ctx, sb.ContainerID, files); err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}

	sb.setState(StateBusy, m.now())
	m.save(ctx, sb)

	out, err := m.backend.Exec(ctx, sb.ContainerID, cmd, m.cfg.Limits.OutputBytes)
	if ctx.Err() != nil {
		cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
		defer cancel()
		m.remove(cleanup, sb)
		return nil, ctx.Err()
	}

	now := m.now()
	sb.Runs++
	sb.LastRunAt = &now
	sb.ExpiresAt = now.Add(m.cfg.IdleTTL)
	sb.setState(StateIdle, now)
	m.save(ctx, sb)

	if err != nil {
		return nil, fmt.Errorf("exec in sandbox %s: %w", sb.ID, err)
	}
	return out, nil
}

// acquire returns the session's usable sandbox or starts a new one. The
// caller holds the session lock.
func (m *Manager) acquire(ctx context.Context, sessionID string) (*Sandbox, error) {
	existing, err := m.store.ForSession(ctx, sessionID)
	switch {
	case err == nil && existing.Usable(m.now()):
		return existing, nil
	case err == nil:
		m.remove(ctx, existing)
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("find sandbox: %w", err)
	}

	sb, err := m.reserve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	containerID, err := m.backend.Start(ctx, Spec{SessionID: sessionID, Image: sb.Image, Limits: sb.Limits})
	if err != nil {
		sb.setState(StateRemoved, m.now())
		m.save(ctx, sb)
		m.disown(sb.ID)
		return nil, fmt.Errorf("start container: %w", err)
	}

	sb.ContainerID = containerID
	sb.setState(StateIdle, m.now())
	if err := m.store.Save(ctx, sb); err != nil {
		_ = m.backend.Remove(ctx, containerID)
		m.disown(sb.ID)
		return nil, fmt.Errorf("save sandbox: %w", err)
	}

	slog.Info("sandbox started",
		"sandbox_id", sb.ID,
		"session_id", sessionID,
		"container_id", shortID(containerID),
	)
	return sb, nil
}

// reserve records a starting sandbox when there is capacity for it.
// Starting sandboxes count as live, so concurrent sessions cannot overshoot
// MaxSandboxes.
func (m *Manager) reserve(ctx context.Context, sessionID string) (*Sandbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live, err := m.store.Live(ctx)
	if err != nil {
		return nil, fmt.Errorf("list live sandboxes: %w", err)
	}
	if len(live) >= m.cfg.MaxSandboxes {
		return nil, ErrCapacity
	}

	now := m.now()
	sb := &Sandbox{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Image:     m.cfg.Image,
		State:     StateStarting,
		Limits:    m.cfg.Limits,
		ExpiresAt: now.Add(m.cfg.IdleTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, sb); err != nil {
		return nil, fmt.Errorf("save sandbox: %w", err)
	}
	m.owned[sb.ID] = struct{}{}
	return sb, nil
}

// Release removes the sandbox of a session.
func (m *Manager) Release(ctx context.Context, sessionID string) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	sb, err := m.store.ForSession(ctx, sessionID)
	if err != nil {
		return err
	}
	m.remove(ctx, sb)
	return nil
}

// Reap removes every sandbox idle past its TTL and reports how many went.
func (m *Manager) Reap(ctx context.Context) (int, error) {
	expired, err := m.store.Expired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("list expired sandboxes: %w", err)
	}

	reaped := 0
	for _, sb := range expired {
		unlock := m.lockSession(sb.SessionID)
		// A run may have refreshed the TTL since the listing.
		current, err := m.store.Get(ctx, sb.ID)
		if err == nil && current.State != StateRemoved && !current.Usable(m.now()) {
			m.remove(ctx, current)
			reaped++
		}
		unlock()
	}
	if reaped > 0 {
		slog.Info("reaped idle sandboxes", "count", reaped)
	}
	return reaped, nil
}

// StartReaper runs Reap every interval until ctx is done.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Reap(ctx); err != nil {
					slog.Warn("sandbox reap failed", "error", err)
				}
			}
		}
	}()
}

// Recover reconciles the store with the runtime after a restart. Containers
// no live record points at are removed; live records whose container is gone
// are marked removed. It reports the number of containers removed.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	containers, err := m.backend.Containers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list containers: %w", err)
	}
	live, err := m.store.Live(ctx)
	if err != nil {
		return 0, fmt.Errorf("list live sandboxes: %w", err)
	}

	known := make(map[string]bool, len(live))
	for _, sb := range live {
		known[sb.ContainerID] = true
	}
	running := make(map[string]bool, len(containers))
	removed := 0
	for _, id := range containers {
		running[id] = true
		if known[id] {
			continue
		}
		if err := m.backend.Remove(ctx, id); err != nil {
			slog.Warn("failed to remove orphaned container", "container_id", shortID(id), "error", err)
			continue
		}
		removed++
	}
	for _, sb := range live {
		if !running[sb.ContainerID] {
			sb.setState(StateRemoved, m.now())
			m.save(ctx, sb)
		}
	}
	if removed > 0 {
		slog.Info("removed orphaned sandbox containers", "count", removed)
	}
	return removed, nil
}

// Close removes the sandboxes this manager started and closes the backend.
// Sandboxes of other processes sharing the store are left alone.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.owned))
	for id := range m.owned {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		sb, err := m.store.Get(ctx, id)
		if err != nil || sb.State == StateRemoved {
			continue
		}
		unlock := m.lockSession(sb.SessionID)
		m.remove(ctx, sb)
		unlock()
	}
	return m.backend.Close()
}

// remove deletes the container and marks the record removed.
func (m *Manager) remove(ctx context.Context, sb *Sandbox) {
	if sb.ContainerID != "" {
		if err := m.backend.Remove(ctx, sb.ContainerID); err != nil {
			slog.Warn("failed to remove container", "sandbox_id", sb.ID, "container_id", shortID(sb.ContainerID), "error", err)
		}
	}
	sb.setState(StateRemoved, m.now())
	m.save(ctx, sb)
	m.disown(sb.ID)
}

func (m *Manager) save(ctx context.Context, sb *Sandbox) {
	if err := m.store.Save(ctx, sb); err != nil {
		slog.Warn("failed to save sandbox", "sandbox_id", sb.ID, "state", sb.State, "error", err)
	}
}

func (m *Manager) disown(id string) {
	m.mu.Lock()
	delete(m.owned, id)
	m.mu.Unlock()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
