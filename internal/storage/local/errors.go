package local

import "errors"

var (
	ErrNotFound   = errors.New("document not found")
	ErrInvalidKey = errors.New("invalid document key")
)
