package domain

// FeedbackCategory classifies a piece of feedback.
type FeedbackCategory string

const (
	CategorySuccessful                   FeedbackCategory = "SUCCESSFUL"
	CategoryKnownBugFailure              FeedbackCategory = "KNOWN_BUG_FAILURE"
	CategorySuiteLevelFailure            FeedbackCategory = "SUITE_LEVEL_FAILURE"
	CategoryIncorrectOutputFailure       FeedbackCategory = "INCORRECT_OUTPUT_FAILURE"
	CategoryPerformanceTestFailure       FeedbackCategory = "PERFORMANCE_TEST_FAILURE"
	CategorySyntaxError                  FeedbackCategory = "SYNTAX_ERROR"
	CategoryRuntimeError                 FeedbackCategory = "RUNTIME_ERROR"
	CategoryTimeLimitError               FeedbackCategory = "TIME_LIMIT_ERROR"
	CategoryStackExceededError           FeedbackCategory = "STACK_EXCEEDED_ERROR"
	CategoryServerError                  FeedbackCategory = "SERVER_ERROR"
	CategoryFailsStarterCodeCheck        FeedbackCategory = "FAILS_STARTER_CODE_CHECK"
	CategoryFailsBadImportCheck          FeedbackCategory = "FAILS_BAD_IMPORT_CHECK"
	CategoryFailsGlobalCodeCheck         FeedbackCategory = "FAILS_GLOBAL_CODE_CHECK"
	CategoryFailsLanguageDetectionCheck  FeedbackCategory = "FAILS_LANGUAGE_DETECTION_CHECK"
	CategoryFailsForbiddenNamespaceCheck FeedbackCategory = "FAILS_FORBIDDEN_NAMESPACE_CHECK"
)

// AllFeedbackCategories lists every category in declaration order.
var AllFeedbackCategories = []FeedbackCategory{
	CategorySuccessful,
	CategoryKnownBugFailure,
	CategorySuiteLevelFailure,
	CategoryIncorrectOutputFailure,
	CategoryPerformanceTestFailure,
	CategorySyntaxError,
	CategoryRuntimeError,
	CategoryTimeLimitError,
	CategoryStackExceededError,
	CategoryServerError,
	CategoryFailsStarterCodeCheck,
	CategoryFailsBadImportCheck,
	CategoryFailsGlobalCodeCheck,
	CategoryFailsLanguageDetectionCheck,
	CategoryFailsForbiddenNamespaceCheck,
}

// IsValid reports whether c is a known category.
func (c FeedbackCategory) IsValid() bool {
	for _, known := range AllFeedbackCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IsPrereqFailure reports whether the category comes from a prerequisite check.
func (c FeedbackCategory) IsPrereqFailure() bool {
	switch c {
	case CategoryFailsStarterCodeCheck, CategoryFailsBadImportCheck, CategoryFailsGlobalCodeCheck,
		CategoryFailsLanguageDetectionCheck, CategoryFailsForbiddenNamespaceCheck:
		return true
	}
	return false
}

// ParagraphType describes how a paragraph should be rendered.
type ParagraphType string

const (
	ParagraphText   ParagraphType = "text"
	ParagraphCode   ParagraphType = "code"
	ParagraphOutput ParagraphType = "output"
	ParagraphError  ParagraphType = "error"
)

// Paragraph is a single typed block of feedback.
type Paragraph struct {
	Type    ParagraphType `json:"type"`
	Content string        `json:"content"`
}

// Feedback is the single response returned for a submission.
type Feedback struct {
	Category        FeedbackCategory `json:"category"`
	Paragraphs      []Paragraph      `json:"paragraphs"`
	HintIndex       *int             `json:"hint_index,omitempty"`
	ErrorLineNumber *int             `json:"error_line_number,omitempty"`
}

// NewFeedback creates an empty feedback of the given category.
func NewFeedback(category FeedbackCategory) *Feedback {
	return &Feedback{Category: category}
}

// AppendText appends a plain text paragraph.
func (f *Feedback) AppendText(content string) *Feedback {
	return f.appendParagraph(ParagraphText, content)
}

// AppendCode appends a code block paragraph.
func (f *Feedback) AppendCode(content string) *Feedback {
	return f.appendParagraph(ParagraphCode, content)
}

// AppendOutput appends a program output paragraph.
func (f *Feedback) AppendOutput(content string) *Feedback {
	return f.appendParagraph(ParagraphOutput, content)
}

// AppendError appends an error trace paragraph.
func (f *Feedback) AppendError(content string) *Feedback {
	return f.appendParagraph(ParagraphError, content)
}

func (f *Feedback) appendParagraph(t ParagraphType, content string) *Feedback {
	f.Paragraphs = append(f.Paragraphs, Paragraph{Type: t, Content: content})
	return f
}

// SetHintIndex records the position within a hint list.
func (f *Feedback) SetHintIndex(i int) {
	f.HintIndex = &i
}

// SetErrorLineNumber records the 1-based source line the feedback refers to.
func (f *Feedback) SetErrorLineNumber(line int) {
	f.ErrorLineNumber = &line
}

// GetParagraphs returns a copy of the paragraphs in append order.
func (f *Feedback) GetParagraphs() []Paragraph {
	out := make([]Paragraph, len(f.Paragraphs))
	copy(out, f.Paragraphs)
	return out
}

// FirstParagraph returns the content of the first paragraph, if any.
func (f *Feedback) FirstParagraph() (string, bool) {
	if f == nil || len(f.Paragraphs) == 0 {
		return "", false
	}
	return f.Paragraphs[0].Content, true
}

// HintIndexOr returns the hint index or def when none is set.
func (f *Feedback) HintIndexOr(def int) int {
	if f == nil || f.HintIndex == nil {
		return def
	}
	return *f.HintIndex
}
