package sqlite

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/session"
)

func TestTranscriptStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	sess := session.NewSession("parens", domain.LanguagePython)
	if err := NewSessionStore(db).Save(ctx, sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	store := NewTranscriptStore(db)

	categories := []domain.FeedbackCategory{
		domain.CategorySyntaxError,
		domain.CategoryServerError,
		domain.CategoryIncorrectOutputFailure,
	}
	for i, c := range categories {
		if err := store.Append(ctx, sess.ID, domain.NewSnapshot(i, nil, nil, domain.NewFeedback(c))); err != nil {
			t.Fatalf("Append(%s) error = %v", c, err)
		}
	}

	tr, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tr.Len() != len(categories) {
		t.Fatalf("Len() = %d; want %d", tr.Len(), len(categories))
	}
	for i, snap := range tr.Snapshots() {
		if snap.Category() != categories[i] || snap.TaskIndex != i {
			t.Errorf("snapshot %d = %s/%d; want %s/%d", i, snap.Category(), snap.TaskIndex, categories[i], i)
		}
	}
	if last := tr.LastAttempt(); last == nil || last.Category() != domain.CategoryIncorrectOutputFailure {
		t.Errorf("LastAttempt() = %v; want the incorrect output snapshot", last)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	tr, _ = store.Load(ctx, sess.ID)
	if tr.Len() != 0 {
		t.Errorf("Len() after delete = %d; want 0", tr.Len())
	}
}
