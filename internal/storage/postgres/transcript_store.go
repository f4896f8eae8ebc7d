package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sqlc-dev/pqtype"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// TranscriptStore implements transcript.Store using PostgreSQL. The
// reinforcement record is duplicated into its own nullable column so it can
// be queried without decoding the snapshot.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore creates a new PostgreSQL transcript store
func NewTranscriptStore(db *DB) *TranscriptStore {
	return &TranscriptStore{db: db.SQL}
}

// Append adds a snapshot to the end of a session's transcript
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	reinforcement, err := nullRawMessage(snap.Reinforcement)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO snapshots (id, session_id, seq, task_index, category, data, reinforcement, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE session_id = $2), $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		snap.ID, sessionID, snap.TaskIndex, string(snap.Category()), data, reinforcement, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Load returns the transcript of a session in append order
func (s *TranscriptStore) Load(ctx context.Context, sessionID string) (*domain.Transcript, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM snapshots WHERE session_id = $1 ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.Snapshot
	for rows.Next() {
		var data pqtype.NullRawMessage
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(data.RawMessage, &snap); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.RestoreTranscript(sessionID, snapshots), nil
}

// Delete drops a session's transcript
func (s *TranscriptStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE session_id = $1", sessionID); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

func nullRawMessage(r *domain.ReinforcementRecord) (pqtype.NullRawMessage, error) {
	if r == nil {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("marshal reinforcement: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}
