package postgres

import (
	"github.com/felixgeelhaar/coach/internal/session"
	"github.com/felixgeelhaar/coach/internal/transcript"
)

var (
	_ session.Store      = (*SessionStore)(nil)
	_ session.DraftStore = (*DraftStore)(nil)
	_ transcript.Store   = (*TranscriptStore)(nil)
)
