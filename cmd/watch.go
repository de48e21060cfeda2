package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nb75km/nenavi-cli/tracker"
	"github.com/nb75km/nenavi-cli/tui"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	return &cobra.Command{
		Use:   "watch",
		Short: "Watch transcription and drafting progress",
		Long: `Open a live view of transcripts and their processing state.

In-flight jobs are polled in the background; rows advance from
transcribing through drafting to ready as the backend finishes each
stage. Service health is shown in the footer. Quit with q.

Examples:
  nenavi watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, deps)
		},
	}
}

func runWatch(cmd *cobra.Command, deps *Deps) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	tr := tracker.New(tracker.Clients{
		Transcripts: set.transcripts,
		Jobs:        set.jobs,
		Minutes:     set.minutes,
	}, tracker.Options{
		PollInterval: set.cfg.PollInterval,
		Model:        set.cfg.Model,
		Logger:       deps.Logger,
	})

	model := tui.New(cmd.Context(), tr, healthClients(set), set.cfg.HealthInterval)

	program := tea.NewProgram(model,
		tea.WithContext(cmd.Context()),
		tea.WithOutput(cmd.OutOrStdout()),
		tea.WithInput(cmd.InOrStdin()),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running watch view: %w", err)
	}
	return nil
}
