package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// TranscriptStore keeps each transcript as a Redis list of snapshot JSON.
type TranscriptStore struct {
	client *redis.Client
}

// NewTranscriptStore creates a Redis-backed transcript store.
func NewTranscriptStore(client *redis.Client) *TranscriptStore {
	return &TranscriptStore{client: client}
}

// Append adds a snapshot to the end of a session's transcript.
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.RPush(ctx, transcriptKey(sessionID), data).Err(); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// Load returns the transcript of a session in append order.
func (s *TranscriptStore) Load(ctx context.Context, sessionID string) (*domain.Transcript, error) {
	items, err := s.client.LRange(ctx, transcriptKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	snapshots := make([]*domain.Snapshot, 0, len(items))
	for _, item := range items {
		var snap domain.Snapshot
		if err := json.Unmarshal([]byte(item), &snap); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, &snap)
	}
	return domain.RestoreTranscript(sessionID, snapshots), nil
}

// Delete drops a session's transcript.
func (s *TranscriptStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, transcriptKey(sessionID)).Err()
}
