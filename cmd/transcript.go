package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nb75km/nenavi-cli/client"
	"github.com/nb75km/nenavi-cli/pkg/errors"
	"github.com/nb75km/nenavi-cli/tracker"
)

// Transcript command flags.
var (
	transcriptLimit  int
	transcriptOrder  string
	transcriptOutput string
	transcriptYes    bool
	transcriptFormat string
	transcriptOut    string
)

// NewTranscriptCommand creates the transcript command group.
func NewTranscriptCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:     "transcript",
		Aliases: []string{"tr"},
		Short:   "Manage transcripts",
		Long: `Manage meeting transcripts.

Transcripts are produced by uploading audio ('nenavi upload'); once
speech-to-text finishes, draft minutes are generated automatically.

Examples:
  nenavi transcript list
  nenavi transcript show 42
  nenavi transcript delete 42
  nenavi transcript export 42 --format pdf --out minutes.pdf`,
	}

	cmd.AddCommand(newTranscriptListCommand(deps))
	cmd.AddCommand(newTranscriptShowCommand(deps))
	cmd.AddCommand(newTranscriptDeleteCommand(deps))
	cmd.AddCommand(newTranscriptExportCommand(deps))

	return cmd
}

func newTranscriptListCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transcripts with their pipeline status",
		Long: `List transcripts, newest first, merged with in-flight jobs.

Files still being transcribed or drafted appear alongside finished
transcripts with their current phase.

Examples:
  nenavi transcript list
  nenavi transcript list --limit 10 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscriptList(cmd, deps)
		},
	}

	cmd.Flags().IntVar(&transcriptLimit, "limit", 100, "Maximum results")
	cmd.Flags().StringVar(&transcriptOrder, "order", "desc", "Sort order: asc, desc")
	cmd.Flags().StringVarP(&transcriptOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runTranscriptList(cmd *cobra.Command, deps *Deps) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	rows, err := mergedRows(cmd, set, transcriptLimit, client.ListOrder(transcriptOrder))
	if err != nil {
		return loginHint(err)
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat(transcriptOutput, set.cfg), rows, func(w io.Writer) {
		if len(rows) == 0 {
			fmt.Fprintln(w, "No transcripts.")
			return
		}
		fmt.Fprintf(w, "%-6s %-32s %-20s %s\n", "ID", "FILE", "CREATED", "STATUS")
		for _, row := range rows {
			id := "-"
			if row.TranscriptID != 0 {
				id = strconv.FormatInt(row.TranscriptID, 10)
			}
			name := row.Filename
			if name == "" {
				name = row.FileID
			}
			created := "-"
			if !row.CreatedAt.IsZero() {
				created = row.CreatedAt.Local().Format("2006-01-02 15:04")
			}
			status := string(row.Phase)
			if row.Err != "" {
				status = status + ": " + row.Err
			}
			fmt.Fprintf(w, "%-6s %-32s %-20s %s\n", id, name, created, status)
		}
	})
}

func newTranscriptShowCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <transcript-id>",
		Short: "Show a transcript's full text",
		Long: `Show one transcript including its full text.

Examples:
  nenavi transcript show 42
  nenavi transcript show 42 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscriptShow(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&transcriptOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runTranscriptShow(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	transcript, err := set.transcripts.Get(cmd.Context(), id)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("transcript %d not found", id)
		}
		return loginHint(err)
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat(transcriptOutput, set.cfg), transcript, func(w io.Writer) {
		fmt.Fprintf(w, "Transcript %d: %s\n", transcript.ID, transcript.Filename)
		if transcript.Language != "" {
			fmt.Fprintf(w, "Language: %s\n", transcript.Language)
		}
		fmt.Fprintf(w, "Created:  %s\n\n", transcript.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintln(w, transcript.Text)
	})
}

func newTranscriptDeleteCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <transcript-id>",
		Short: "Delete a transcript and its minutes",
		Long: `Delete a transcript. All minutes versions derived from it are
removed as well. Asks for confirmation unless --yes is given.

Examples:
  nenavi transcript delete 42
  nenavi transcript delete 42 --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscriptDelete(cmd, deps, args[0])
		},
	}

	cmd.Flags().BoolVarP(&transcriptYes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runTranscriptDelete(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	if !transcriptYes {
		fmt.Fprintf(cmd.OutOrStdout(), "Delete transcript %d and all its minutes? [y/N] ", id)
		reader := bufio.NewReader(cmd.InOrStdin())
		line, _ := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	if err := set.transcripts.Delete(cmd.Context(), id); err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("transcript %d not found", id)
		}
		return loginHint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted transcript %d\n", id)
	return nil
}

func newTranscriptExportCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <transcript-id>",
		Short: "Export a transcript to a file",
		Long: `Download a transcript in the given format.

Formats: markdown, docx, pdf, html

Examples:
  nenavi transcript export 42 --format markdown
  nenavi transcript export 42 --format pdf --out meeting.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscriptExport(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVar(&transcriptFormat, "format", client.ExportMarkdown, "Export format: markdown, docx, pdf, html")
	cmd.Flags().StringVar(&transcriptOut, "out", "", "Output file (defaults to transcript-<id>.<format>)")

	return cmd
}

func runTranscriptExport(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	body, _, err := set.transcripts.Export(cmd.Context(), id, transcriptFormat)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("transcript %d not found", id)
		}
		return loginHint(err)
	}
	defer body.Close()

	out := transcriptOut
	if out == "" {
		out = fmt.Sprintf("transcript-%d.%s", id, exportExtension(transcriptFormat))
	}

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filepath.Clean(out))
	return nil
}

// exportExtension maps an export format to a file extension.
func exportExtension(format string) string {
	switch format {
	case client.ExportMarkdown, "md":
		return "md"
	default:
		return format
	}
}

// mergedRows lists transcripts and jobs and merges them into display rows.
func mergedRows(cmd *cobra.Command, set *clientSet, limit int, order client.ListOrder) ([]tracker.Row, error) {
	transcripts, err := set.transcripts.List(cmd.Context(), limit, order)
	if err != nil {
		return nil, err
	}
	jobs, err := set.jobs.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	return tracker.Merge(transcripts, jobs), nil
}

// parseID parses a numeric id argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
