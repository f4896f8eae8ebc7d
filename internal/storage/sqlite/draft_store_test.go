package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/coach/internal/domain"
)

func TestDraftStore(t *testing.T) {
	ctx := context.Background()
	store := NewDraftStore(openTestDB(t))

	if _, err := store.LoadDraft(ctx, "parens", domain.LanguagePython); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Errorf("LoadDraft() error = %v; want ErrDraftNotFound", err)
	}

	for _, code := range []string{"def isBalanced(s):\n    pass", "def isBalanced(s):\n    return True"} {
		if err := store.SaveDraft(ctx, "parens", domain.LanguagePython, code); err != nil {
			t.Fatalf("SaveDraft() error = %v", err)
		}
		got, err := store.LoadDraft(ctx, "parens", domain.LanguagePython)
		if err != nil {
			t.Fatalf("LoadDraft() error = %v", err)
		}
		if got != code {
			t.Errorf("LoadDraft() = %q; want %q", got, code)
		}
	}

	if err := store.ClearDraft(ctx, "parens", domain.LanguagePython); err != nil {
		t.Fatalf("ClearDraft() error = %v", err)
	}
	if err := store.ClearDraft(ctx, "parens", domain.LanguagePython); err != nil {
		t.Errorf("ClearDraft() on a missing draft error = %v; want nil", err)
	}
	if _, err := store.LoadDraft(ctx, "parens", domain.LanguagePython); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Errorf("LoadDraft() after clear error = %v; want ErrDraftNotFound", err)
	}
}
