package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// TranscriptStore implements transcript persistence backed by SQLite. Each
// snapshot is a row ordered by its sequence number within the session.
type TranscriptStore struct {
	db *DB
}

// NewTranscriptStore creates a new SQLite-backed transcript store.
func NewTranscriptStore(db *DB) *TranscriptStore {
	return &TranscriptStore{db: db}
}

// Append adds a snapshot to the end of a session's transcript.
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, session_id, seq, task_index, category, data, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE session_id = ?), ?, ?, ?, ?)`,
		snap.ID, sessionID, sessionID, snap.TaskIndex, string(snap.Category()), string(data), snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Load returns the transcript of a session in append order.
func (s *TranscriptStore) Load(ctx context.Context, sessionID string) (*domain.Transcript, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM snapshots WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.Snapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap domain.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.RestoreTranscript(sessionID, snapshots), nil
}

// Delete drops a session's transcript.
func (s *TranscriptStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}
