// Package transcript persists the append-only snapshot history of learner
// sessions.
package transcript

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/storage/local"
)

// Store persists transcripts. Snapshots are only ever appended; Load returns
// them in append order.
type Store interface {
	Append(ctx context.Context, sessionID string, snapshot *domain.Snapshot) error
	Load(ctx context.Context, sessionID string) (*domain.Transcript, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string][]*domain.Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transcripts: make(map[string][]*domain.Snapshot)}
}

// Append adds a snapshot to a session's transcript.
func (s *MemoryStore) Append(_ context.Context, sessionID string, snapshot *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[sessionID] = append(s.transcripts[sessionID], snapshot)
	return nil
}

// Load returns the transcript of a session. Unknown sessions have an empty
// transcript.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (*domain.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.RestoreTranscript(sessionID, s.transcripts[sessionID]), nil
}

// Delete drops a session's transcript.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, sessionID)
	return nil
}

const collectionTranscripts = "transcripts"

// FileStore keeps each snapshot in its own JSON file, named by its position
// in the transcript.
type FileStore struct {
	mu    sync.Mutex
	store *local.Store
}

// NewFileStore creates a file-backed transcript store under basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &FileStore{store: store}, nil
}

// Append adds a snapshot to a session's transcript.
func (s *FileStore) Append(_ context.Context, sessionID string, snapshot *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := local.Key(collectionTranscripts, sessionID)
	names, err := s.store.Names(dir)
	if err != nil {
		return err
	}
	return s.store.Put(local.Key(dir, fmt.Sprintf("%06d", len(names))), snapshot)
}

// Load returns the transcript of a session.
func (s *FileStore) Load(_ context.Context, sessionID string) (*domain.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := local.Key(collectionTranscripts, sessionID)
	names, err := s.store.Names(dir)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*domain.Snapshot, 0, len(names))
	for _, name := range names {
		var snap domain.Snapshot
		if err := s.store.Get(local.Key(dir, name), &snap); err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", name, err)
		}
		snapshots = append(snapshots, &snap)
	}
	return domain.RestoreTranscript(sessionID, snapshots), nil
}

// Delete drops a session's transcript.
func (s *FileStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.RemoveTree(local.Key(collectionTranscripts, sessionID))
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
