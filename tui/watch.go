// Package tui implements the interactive watch view: a live table of
// transcripts and their pipeline phases, with a service health footer.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/nb75km/nenavi-cli/client"
	"github.com/nb75km/nenavi-cli/tracker"
)

// truncate caps s at max runes, appending an ellipsis. Filenames are
// often Japanese, so byte slicing would cut mid-rune.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return lo.Substring(s, 0, uint(max-3)) + "..."
}

// Model is the root bubbletea model for the watch view.
type Model struct {
	ctx            context.Context
	tracker        *tracker.Tracker
	health         []*client.HealthClient
	healthInterval time.Duration

	rows          []tracker.Row
	healthResults []client.ServiceHealth
	refreshErr    error
	width         int
	height        int
}

// New creates a watch model. ctx bounds the tracker's poll goroutines; the
// caller cancels it when the program exits.
func New(ctx context.Context, tr *tracker.Tracker, health []*client.HealthClient, healthInterval time.Duration) Model {
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}
	return Model{
		ctx:            ctx,
		tracker:        tr,
		health:         health,
		healthInterval: healthInterval,
		rows:           tr.Snapshot(),
	}
}

// Init starts listening for tracker updates and kicks off the first
// refresh and health round.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		m.waitForUpdate(),
		m.checkHealthCmd(),
	)
}

// waitForUpdate blocks on the tracker's update channel.
func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case <-m.tracker.Updates():
			return rowsUpdatedMsg{}
		}
	}
}

// refreshCmd reloads the row set from the backend.
func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{Err: m.tracker.Refresh(m.ctx)}
	}
}

// checkHealthCmd probes every configured service once.
func (m Model) checkHealthCmd() tea.Cmd {
	return func() tea.Msg {
		results := make([]client.ServiceHealth, 0, len(m.health))
		for _, h := range m.health {
			results = append(results, h.Check(m.ctx))
		}
		return healthMsg{Results: results}
	}
}

// scheduleHealthTick waits one health interval.
func (m Model) scheduleHealthTick() tea.Cmd {
	return tea.Tick(m.healthInterval, func(t time.Time) tea.Msg {
		return healthTickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case rowsUpdatedMsg:
		m.rows = m.tracker.Snapshot()
		return m, m.waitForUpdate()

	case refreshDoneMsg:
		m.refreshErr = msg.Err
		m.rows = m.tracker.Snapshot()

	case healthMsg:
		m.healthResults = msg.Results
		return m, m.scheduleHealthTick()

	case healthTickMsg:
		return m, m.checkHealthCmd()
	}

	return m, nil
}

// phaseLabel renders a phase with its color.
func phaseLabel(row tracker.Row) string {
	switch row.Phase {
	case tracker.PhaseSTT:
		return sttStyle.Render("● transcribing")
	case tracker.PhaseDraft:
		return draftStyle.Render("● drafting")
	case tracker.PhaseReady:
		return readyStyle.Render("● ready")
	case tracker.PhaseError:
		return errorStyle.Render("✗ " + row.Err)
	default:
		return string(row.Phase)
	}
}

// View renders the table.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("NE Navi transcripts"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-30s %-24s %s", "ID", "FILE", "CREATED", "STATUS")))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(statusStyle.Render("no transcripts yet"))
		b.WriteString("\n")
	}

	for _, row := range m.rows {
		id := "-"
		if row.TranscriptID != 0 {
			id = fmt.Sprintf("%d", row.TranscriptID)
		}
		name := row.Filename
		if name == "" {
			name = row.FileID
		}
		name = truncate(name, 30)
		created := "-"
		if !row.CreatedAt.IsZero() {
			created = row.CreatedAt.Local().Format("2006-01-02 15:04:05")
		}
		b.WriteString(fmt.Sprintf("%-6s %-30s %-24s %s\n", id, name, created, phaseLabel(row)))
	}

	b.WriteString("\n")

	if m.refreshErr != nil {
		b.WriteString(errorStyle.Render("refresh failed: " + m.refreshErr.Error()))
		b.WriteString("\n")
	}

	if len(m.healthResults) > 0 {
		parts := make([]string, 0, len(m.healthResults))
		for _, h := range m.healthResults {
			if h.Healthy {
				parts = append(parts, healthyStyle.Render("● "+h.Name))
			} else {
				parts = append(parts, unhealthyStyle.Render("● "+h.Name))
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(parts, "  ")))
		b.WriteString("\n")
	}

	b.WriteString(statusStyle.Render("q quit · r refresh"))
	b.WriteString("\n")

	return b.String()
}
