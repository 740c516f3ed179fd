package tui

import (
	"github.com/jungcome7/pdf-stamper/session"
)

// snapshotMsg carries a fresh session snapshot.
type snapshotMsg struct {
	snap session.Snapshot
	err  error
}

// actionMsg reports the outcome of a session operation. A non-empty status
// is shown when err is nil.
type actionMsg struct {
	status string
	err    error
}

// exportedMsg reports a finished export.
type exportedMsg struct {
	path    string
	placed  int
	skipped int
	err     error
}

// ReloadedMsg tells the editor the document was replaced outside of it,
// for example by the file watcher.
type ReloadedMsg struct {
	Err error
}
