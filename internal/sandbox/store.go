package sandbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists sandbox records. The manager is the only writer.
type Store interface {
	Save(ctx context.Context, sb *Sandbox) error
	Get(ctx context.Context, id string) (*Sandbox, error)
	// ForSession returns the newest sandbox of a session that has not been
	// removed.
	ForSession(ctx context.Context, sessionID string) (*Sandbox, error)
	Delete(ctx context.Context, id string) error
	// Live returns every sandbox that has not been removed, newest first.
	Live(ctx context.Context) ([]*Sandbox, error)
	// Expired returns the live sandboxes whose TTL ended before now.
	Expired(ctx context.Context, now time.Time) ([]*Sandbox, error)
}

// MemoryStore keeps sandbox records in process memory. Records are copied in
// and out.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Sandbox
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Sandbox)}
}

func (s *MemoryStore) Save(_ context.Context, sb *Sandbox) error {
	s.mu.Lock()
	s.byID[sb.ID] = *sb
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Sandbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sb, ok := s.byID[id]; ok {
		return &sb, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ForSession(_ context.Context, sessionID string) (*Sandbox, error) {
	found := s.collect(func(sb *Sandbox) bool {
		return sb.SessionID == sessionID && sb.State != StateRemoved
	})
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) Live(context.Context) ([]*Sandbox, error) {
	return s.collect(func(sb *Sandbox) bool { return sb.State != StateRemoved }), nil
}

func (s *MemoryStore) Expired(_ context.Context, now time.Time) ([]*Sandbox, error) {
	return s.collect(func(sb *Sandbox) bool {
		return sb.State != StateRemoved && sb.ExpiresAt.Before(now)
	}), nil
}

func (s *MemoryStore) collect(match func(*Sandbox) bool) []*Sandbox {
	s.mu.RLock()
	var out []*Sandbox
	for _, sb := range s.byID {
		if match(&sb) {
			out = append(out, &sb)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

var _ Store = (*MemoryStore)(nil)
