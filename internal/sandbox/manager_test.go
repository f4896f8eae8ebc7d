package sandbox

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu         sync.Mutex
	started    int
	running    map[string]bool
	uploads    map[string]map[string]string
	execDelay  time.Duration
	startErr   error
	closed     bool
	concurrent int
	maxSeen    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{running: make(map[string]bool), uploads: make(map[string]map[string]string)}
}

func (b *fakeBackend) Start(_ context.Context, spec Spec) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return "", b.startErr
	}
	b.started++
	id := fmt.Sprintf("ctr-%s-%d", spec.SessionID, b.started)
	b.running[id] = true
	return id, nil
}

func (b *fakeBackend) Upload(_ context.Context, containerID string, files map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads[containerID] = files
	return nil
}

func (b *fakeBackend) Exec(ctx context.Context, _ string, cmd []string, _ int) (*Output, error) {
	b.mu.Lock()
	b.concurrent++
	b.maxSeen = max(b.maxSeen, b.concurrent)
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.concurrent--
		b.mu.Unlock()
	}()

	if b.execDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.execDelay):
		}
	}
	return &Output{Stdout: "ran " + cmd[0]}, nil
}

func (b *fakeBackend) Remove(_ context.Context, containerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.running, containerID)
	return nil
}

func (b *fakeBackend) Containers(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for id := range b.running {
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBackend) live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.running)
}

var harness = []string{"python3", "harness.py"}

func TestManager_RunReusesSessionSandbox(t *testing.T) {
	backend := newFakeBackend()
	store := NewMemoryStore()
	m := NewManager(store, backend, Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := m.Run(ctx, "s1", map[string]string{"harness.py": "print(1)"}, harness)
		if err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
		if out.Stdout != "ran python3" {
			t.Errorf("Stdout = %q", out.Stdout)
		}
	}
	if backend.started != 1 {
		t.Errorf("containers started = %d, want 1", backend.started)
	}

	sb, err := store.ForSession(ctx, "s1")
	if err != nil {
		t.Fatalf("ForSession() error = %v", err)
	}
	if sb.Runs != 3 || sb.State != StateIdle || sb.LastRunAt == nil {
		t.Errorf("stored sandbox = %+v", sb)
	}
	if backend.uploads[sb.ContainerID]["harness.py"] != "print(1)" {
		t.Error("files were not uploaded")
	}
	if sb.Limits != DefaultConfig().Limits {
		t.Errorf("Limits = %+v, want defaults", sb.Limits)
	}
}

func TestManager_SessionsRunInParallel(t *testing.T) {
	backend := newFakeBackend()
	backend.execDelay = 30 * time.Millisecond
	m := NewManager(NewMemoryStore(), backend, Config{})

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "a"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Run(context.Background(), id, nil, harness); err != nil {
				t.Errorf("Run(%s) error = %v", id, err)
			}
		}()
	}
	wg.Wait()

	if backend.started != 3 {
		t.Errorf("containers started = %d, want one per session", backend.started)
	}
	if backend.maxSeen < 2 {
		t.Errorf("max concurrent execs = %d, want different sessions to overlap", backend.maxSeen)
	}
}

func TestManager_CancelledRunRemovesSandbox(t *testing.T) {
	backend := newFakeBackend()
	backend.execDelay = time.Second
	store := NewMemoryStore()
	m := NewManager(store, backend, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Run(ctx, "s1", nil, harness); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want DeadlineExceeded", err)
	}
	if backend.live() != 0 {
		t.Errorf("containers left running = %d", backend.live())
	}
	if _, err := store.ForSession(context.Background(), "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ForSession() error = %v, want ErrNotFound", err)
	}

	backend.execDelay = 0
	if _, err := m.Run(context.Background(), "s1", nil, harness); err != nil {
		t.Fatalf("Run() after cancel error = %v", err)
	}
	if backend.started != 2 {
		t.Errorf("containers started = %d, want a fresh one", backend.started)
	}
}

func TestManager_StartFailureFreesCapacity(t *testing.T) {
	backend := newFakeBackend()
	backend.startErr = errors.New("no image")
	m := NewManager(NewMemoryStore(), backend, Config{MaxSandboxes: 1})
	ctx := context.Background()

	if _, err := m.Run(ctx, "s1", nil, harness); err == nil {
		t.Fatal("Run() expected start error")
	}
	backend.startErr = nil
	if _, err := m.Run(ctx, "s2", nil, harness); err != nil {
		t.Fatalf("Run() after failed start error = %v", err)
	}
}

func TestManager_CapacityAndReap(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(NewMemoryStore(), backend, Config{MaxSandboxes: 1, IdleTTL: time.Minute})
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := m.Run(ctx, "s1", nil, harness); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := m.Run(ctx, "s2", nil, harness); !errors.Is(err, ErrCapacity) {
		t.Fatalf("Run() error = %v, want ErrCapacity", err)
	}

	if n, err := m.Reap(ctx); err != nil || n != 0 {
		t.Fatalf("Reap() before TTL = %d, %v", n, err)
	}
	now = now.Add(2 * time.Minute)
	if n, err := m.Reap(ctx); err != nil || n != 1 {
		t.Fatalf("Reap() after TTL = %d, %v", n, err)
	}
	if _, err := m.Run(ctx, "s2", nil, harness); err != nil {
		t.Fatalf("Run() after reap error = %v", err)
	}
}

func TestManager_Release(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(NewMemoryStore(), backend, Config{})
	ctx := context.Background()

	if err := m.Release(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Release() without sandbox error = %v, want ErrNotFound", err)
	}
	if _, err := m.Run(ctx, "s1", nil, harness); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(ctx, "s1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if backend.live() != 0 {
		t.Errorf("containers left running = %d", backend.live())
	}
}

func TestManager_Recover(t *testing.T) {
	backend := newFakeBackend()
	store := NewMemoryStore()
	ctx := context.Background()

	// A previous process left one tracked and one untracked container, and a
	// record whose container is gone.
	backend.running["ctr-tracked"] = true
	backend.running["ctr-orphan"] = true
	now := time.Now()
	for _, sb := range []*Sandbox{
		{ID: "kept", SessionID: "s1", ContainerID: "ctr-tracked", State: StateIdle, ExpiresAt: now.Add(time.Hour), CreatedAt: now},
		{ID: "stale", SessionID: "s2", ContainerID: "ctr-vanished", State: StateIdle, ExpiresAt: now.Add(time.Hour), CreatedAt: now},
	} {
		_ = store.Save(ctx, sb)
	}

	m := NewManager(store, backend, Config{})
	removed, err := m.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if removed != 1 || backend.running["ctr-orphan"] || !backend.running["ctr-tracked"] {
		t.Errorf("Recover() removed %d, running %v", removed, backend.running)
	}
	if stale, _ := store.Get(ctx, "stale"); stale.State != StateRemoved {
		t.Errorf("stale record state = %s, want removed", stale.State)
	}
}

func TestManager_CloseRemovesOwnSandboxesOnly(t *testing.T) {
	backend := newFakeBackend()
	store := NewMemoryStore()
	ctx := context.Background()

	backend.running["ctr-other"] = true
	_ = store.Save(ctx, &Sandbox{ID: "other", SessionID: "x", ContainerID: "ctr-other", State: StateIdle, ExpiresAt: time.Now().Add(time.Hour)})

	m := NewManager(store, backend, Config{})
	if _, err := m.Run(ctx, "s1", nil, harness); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !backend.closed {
		t.Error("Close() did not close the backend")
	}
	if backend.live() != 1 || !backend.running["ctr-other"] {
		t.Errorf("running after Close = %v, want only ctr-other", backend.running)
	}
}

func TestTarFiles(t *testing.T) {
	r, err := tarFiles(map[string]string{"b.py": "bb", "a.py": "a"}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("tarFiles() error = %v", err)
	}
	tr := tar.NewReader(r)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, hdr.Name)
	}
	if len(names) != 2 || names[0] != "a.py" || names[1] != "b.py" {
		t.Errorf("tar entries = %v, want sorted a.py, b.py", names)
	}
}

func TestCappedBuffer(t *testing.T) {
	tests := []struct {
		limit     int
		writes    []string
		want      string
		truncated bool
	}{
		{limit: 0, writes: []string{"abc", "def"}, want: "abcdef"},
		{limit: 4, writes: []string{"ab", "cd"}, want: "abcd"},
		{limit: 4, writes: []string{"abc", "def"}, want: "abcd", truncated: true},
		{limit: 2, writes: []string{"abc", "d"}, want: "ab", truncated: true},
	}
	for _, tt := range tests {
		c := &cappedBuffer{limit: tt.limit}
		for _, w := range tt.writes {
			if n, err := c.Write([]byte(w)); err != nil || n != len(w) {
				t.Fatalf("Write(%q) = %d, %v", w, n, err)
			}
		}
		if c.String() != tt.want || c.truncated != tt.truncated {
			t.Errorf("limit %d: got %q truncated=%v, want %q truncated=%v", tt.limit, c.String(), c.truncated, tt.want, tt.truncated)
		}
	}
}
