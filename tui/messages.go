package tui

import (
	"time"

	"github.com/nb75km/nenavi-cli/client"
)

// rowsUpdatedMsg is sent when the tracker's row set changed.
type rowsUpdatedMsg struct{}

// refreshDoneMsg is sent after a full backend refresh completed.
type refreshDoneMsg struct {
	Err error
}

// healthMsg carries fresh health check results.
type healthMsg struct {
	Results []client.ServiceHealth
}

// healthTickMsg schedules the next health check round.
type healthTickMsg time.Time
