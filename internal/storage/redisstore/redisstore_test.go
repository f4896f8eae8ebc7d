package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/session"
)

// testClient connects to REDIS_URL. Tests are skipped when it is unset.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(testClient(t))

	sess := session.NewSession("parens", domain.LanguagePython)
	sess.UnfamiliarStreak = 1
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	t.Cleanup(func() { store.Delete(ctx, sess.ID) })

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.QuestionID != "parens" || got.UnfamiliarStreak != 1 {
		t.Errorf("Get() = %+v", got)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	found := false
	for _, s := range sessions {
		found = found || s.ID == sess.ID
	}
	if !found {
		t.Error("List() did not include the saved session")
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Get() after delete error = %v; want ErrSessionNotFound", err)
	}
}

func TestTranscriptAndDrafts(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)
	transcripts := NewTranscriptStore(client)
	drafts := NewDraftStore(client)
	sid := "redis-test-" + time.Now().Format("150405.000")
	t.Cleanup(func() { transcripts.Delete(ctx, sid) })

	for _, c := range []domain.FeedbackCategory{domain.CategorySyntaxError, domain.CategoryServerError} {
		if err := transcripts.Append(ctx, sid, domain.NewSnapshot(0, nil, nil, domain.NewFeedback(c))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	tr, err := transcripts.Load(ctx, sid)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tr.Len() != 2 || tr.MostRecent().Category() != domain.CategoryServerError {
		t.Errorf("transcript has %d snapshots", tr.Len())
	}

	if err := drafts.SaveDraft(ctx, sid, domain.LanguagePython, "pass"); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if code, _ := drafts.LoadDraft(ctx, sid, domain.LanguagePython); code != "pass" {
		t.Errorf("LoadDraft() = %q; want pass", code)
	}
	drafts.ClearDraft(ctx, sid, domain.LanguagePython)
	if _, err := drafts.LoadDraft(ctx, sid, domain.LanguagePython); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Errorf("LoadDraft() after clear error = %v; want ErrDraftNotFound", err)
	}
}

func TestLocker(t *testing.T) {
	locker := NewLocker(testClient(t), 5*time.Second)
	key := "test-" + time.Now().Format("150405.000")

	unlock, err := locker.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Lock() error = %v; want deadline exceeded", err)
	}

	unlock()
	unlock2, err := locker.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	unlock2()
}
