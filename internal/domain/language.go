package domain

import (
	"fmt"
	"strings"
)

// Language identifies the programming language of a submission.
type Language string

const (
	LanguagePython Language = "python"
)

// IsValid returns true if the language is supported
func (l Language) IsValid() bool {
	return l == LanguagePython
}

// ParseLanguage converts a string to a Language.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "python3", "py":
		return LanguagePython, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, s)
}
