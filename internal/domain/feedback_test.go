package domain

import (
	"fmt"
	"testing"
)

func TestFeedback_ParagraphsKeepAppendOrder(t *testing.T) {
	for _, n := range []int{0, 1, 5, 20} {
		t.Run(fmt.Sprintf("%d paragraphs", n), func(t *testing.T) {
			f := NewFeedback(CategoryRuntimeError)
			types := []ParagraphType{ParagraphText, ParagraphCode, ParagraphOutput, ParagraphError}
			for i := 0; i < n; i++ {
				content := fmt.Sprintf("paragraph %d", i)
				switch types[i%len(types)] {
				case ParagraphText:
					f.AppendText(content)
				case ParagraphCode:
					f.AppendCode(content)
				case ParagraphOutput:
					f.AppendOutput(content)
				case ParagraphError:
					f.AppendError(content)
				}
			}

			got := f.GetParagraphs()
			if len(got) != n {
				t.Fatalf("len(GetParagraphs()) = %d, want %d", len(got), n)
			}
			for i, p := range got {
				if p.Content != fmt.Sprintf("paragraph %d", i) {
					t.Errorf("paragraph %d content = %q", i, p.Content)
				}
				if p.Type != types[i%len(types)] {
					t.Errorf("paragraph %d type = %q, want %q", i, p.Type, types[i%len(types)])
				}
			}
		})
	}
}

func TestFeedback_GetParagraphsReturnsCopy(t *testing.T) {
	f := NewFeedback(CategorySuccessful).AppendText("done")
	ps := f.GetParagraphs()
	ps[0].Content = "changed"

	if first, _ := f.FirstParagraph(); first != "done" {
		t.Errorf("FirstParagraph() = %q, want %q", first, "done")
	}
}

func TestFeedback_HintIndex(t *testing.T) {
	f := NewFeedback(CategoryKnownBugFailure)
	if got := f.HintIndexOr(-1); got != -1 {
		t.Errorf("HintIndexOr(-1) = %d, want -1", got)
	}
	f.SetHintIndex(2)
	if got := f.HintIndexOr(-1); got != 2 {
		t.Errorf("HintIndexOr(-1) = %d, want 2", got)
	}

	var nilFeedback *Feedback
	if _, ok := nilFeedback.FirstParagraph(); ok {
		t.Error("FirstParagraph() on nil feedback should report false")
	}
}

func TestFeedbackCategory_IsPrereqFailure(t *testing.T) {
	prereq := 0
	for _, c := range AllFeedbackCategories {
		if !c.IsValid() {
			t.Errorf("%s should be valid", c)
		}
		if c.IsPrereqFailure() {
			prereq++
		}
	}
	if len(AllFeedbackCategories) != 15 {
		t.Errorf("len(AllFeedbackCategories) = %d, want 15", len(AllFeedbackCategories))
	}
	if prereq != 5 {
		t.Errorf("prereq categories = %d, want 5", prereq)
	}
	if FeedbackCategory("NOPE").IsValid() {
		t.Error("unknown category should be invalid")
	}
}
