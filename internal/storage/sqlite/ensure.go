package sqlite

import (
	"github.com/felixgeelhaar/coach/internal/sandbox"
	"github.com/felixgeelhaar/coach/internal/session"
	"github.com/felixgeelhaar/coach/internal/transcript"
)

// Ensure SQLite stores implement the storage interfaces.
var (
	_ session.Store      = (*SessionStore)(nil)
	_ session.DraftStore = (*DraftStore)(nil)
	_ transcript.Store   = (*TranscriptStore)(nil)
	_ sandbox.Store      = (*SandboxStore)(nil)
)
