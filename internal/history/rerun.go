package history

import (
	"context"

	"crawldesk/internal/core"
	"crawldesk/internal/logging"
)

// Submitter is the slice of the session engine a rerun drives. Rerunning is
// sugar over the ordinary flow, never a shortcut around the preview gate.
type Submitter interface {
	SetMode(m core.Mode) error
	SetText(text string)
	Submit(ctx context.Context) error
}

// Rerun loads a past write command into the session and submits it: force
// write mode, restore the command text, submit. The resulting preview must
// still be confirmed by the user.
func Rerun(ctx context.Context, s Submitter, entry core.HistoryEntry) error {
	if err := s.SetMode(core.ModeWrite); err != nil {
		return err
	}
	s.SetText(entry.CommandText)
	logging.History("rerunning entry %d", entry.ID)
	return s.Submit(ctx)
}
