package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/session"
)

func TestSessionStore_Save_Get(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(openTestDB(t))

	sess := session.NewSession("parens", domain.LanguagePython)
	sess.State.CorrectnessStates[`"(("`] = domain.CorrectnessInputDisplayed
	sess.State.Pools["input"] = []int{2, 0}
	sess.UnfamiliarStreak = 2
	sess.RecordSubmission()

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.QuestionID != "parens" || loaded.Language != domain.LanguagePython {
		t.Errorf("loaded = %s/%s; want parens/python", loaded.QuestionID, loaded.Language)
	}
	if loaded.Status != session.StatusActive {
		t.Errorf("Status = %q; want %q", loaded.Status, session.StatusActive)
	}
	if got := loaded.State.State(`"(("`); got != domain.CorrectnessInputDisplayed {
		t.Errorf("correctness state = %q; want %q", got, domain.CorrectnessInputDisplayed)
	}
	if len(loaded.State.Pools["input"]) != 2 {
		t.Errorf("Pools = %v; want the saved pool", loaded.State.Pools)
	}
	if loaded.UnfamiliarStreak != 2 || loaded.SubmissionCount != 1 {
		t.Errorf("streak/count = %d/%d; want 2/1", loaded.UnfamiliarStreak, loaded.SubmissionCount)
	}
	if loaded.LastSubmissionAt == nil {
		t.Error("LastSubmissionAt = nil; want a timestamp")
	}
}

func TestSessionStore_Get_NotFound(t *testing.T) {
	store := NewSessionStore(openTestDB(t))

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Get() error = %v; want ErrSessionNotFound", err)
	}
}

func TestSessionStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(openTestDB(t))

	sess := session.NewSession("parens", domain.LanguagePython)
	store.Save(ctx, sess)

	sess.AdvanceTask()
	sess.Complete()
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}

	loaded, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.TaskIndex != 1 || loaded.Status != session.StatusCompleted {
		t.Errorf("task/status = %d/%s; want 1/completed", loaded.TaskIndex, loaded.Status)
	}
}

func TestSessionStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSessionStore(db)
	transcripts := NewTranscriptStore(db)

	sess := session.NewSession("parens", domain.LanguagePython)
	store.Save(ctx, sess)
	snap := domain.NewSnapshot(0, nil, nil, domain.NewFeedback(domain.CategorySyntaxError))
	if err := transcripts.Append(ctx, sess.ID, snap); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("second Delete() error = %v; want ErrSessionNotFound", err)
	}

	tr, err := transcripts.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("transcript has %d snapshots after delete; want 0", tr.Len())
	}
}

func TestSessionStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(openTestDB(t))

	first := session.NewSession("parens", domain.LanguagePython)
	second := session.NewSession("parens", domain.LanguagePython)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	store.Save(ctx, second)
	store.Save(ctx, first)

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != first.ID {
		t.Errorf("List() = %d sessions, first %q; want 2 starting with %q", len(sessions), sessions[0].ID, first.ID)
	}
}
