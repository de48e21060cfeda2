package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nb75km/nenavi-cli/client"
	"github.com/nb75km/nenavi-cli/pkg/diff"
	"github.com/nb75km/nenavi-cli/pkg/errors"
)

// Minutes command flags.
var (
	minutesOutput      string
	minutesFile        string
	minutesInstruction string
	minutesModel       string
	minutesFormat      string
	minutesOut         string
	minutesFrom        int64
	minutesTo          int64
)

// NewMinutesCommand creates the minutes command group.
func NewMinutesCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:     "minutes",
		Aliases: []string{"mi"},
		Short:   "Manage minutes versions",
		Long: `Manage the versioned minutes of a transcript.

Minutes are append-only: saving, AI edits and rollbacks all create a new
version with the next version number. Old versions are never rewritten.

Examples:
  nenavi minutes versions 42
  nenavi minutes show 11
  nenavi minutes save 42 --file minutes.md
  nenavi minutes ai-edit 11 --instruction "tighten the summary"
  nenavi minutes rollback 10
  nenavi minutes diff 42
  nenavi minutes export 11 --format docx`,
	}

	cmd.AddCommand(newMinutesVersionsCommand(deps))
	cmd.AddCommand(newMinutesShowCommand(deps))
	cmd.AddCommand(newMinutesSaveCommand(deps))
	cmd.AddCommand(newMinutesAIEditCommand(deps))
	cmd.AddCommand(newMinutesRollbackCommand(deps))
	cmd.AddCommand(newMinutesDraftCommand(deps))
	cmd.AddCommand(newMinutesDiffCommand(deps))
	cmd.AddCommand(newMinutesExportCommand(deps))

	return cmd
}

func newMinutesVersionsCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions <transcript-id>",
		Short: "List a transcript's minutes versions",
		Long: `List all minutes versions of a transcript, newest first.

Examples:
  nenavi minutes versions 42
  nenavi minutes versions 42 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinutesVersions(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&minutesOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runMinutesVersions(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	versions, err := set.minutes.ListVersions(cmd.Context(), id)
	if err != nil {
		return loginHint(err)
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat(minutesOutput, set.cfg), versions, func(w io.Writer) {
		if len(versions) == 0 {
			fmt.Fprintln(w, "No minutes versions.")
			return
		}
		fmt.Fprintf(w, "%-8s %-8s %-20s %s\n", "ID", "VERSION", "CREATED", "PREVIEW")
		for _, v := range versions {
			preview := truncate(firstLine(v.Markdown), 50)
			fmt.Fprintf(w, "%-8d v%-7d %-20s %s\n",
				v.ID, v.VersionNo, v.CreatedAt.Local().Format("2006-01-02 15:04"), preview)
		}
	})
}

func newMinutesShowCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <version-id>",
		Short: "Print one minutes version's markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinutesShow(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&minutesOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runMinutesShow(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	version, err := set.minutes.GetVersion(cmd.Context(), id)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("minutes version %d not found", id)
		}
		return loginHint(err)
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat(minutesOutput, set.cfg), version, func(w io.Writer) {
		fmt.Fprintln(w, version.Markdown)
	})
}

func newMinutesSaveCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <transcript-id>",
		Short: "Save edited markdown as a new version",
		Long: `Save markdown as a new minutes version of a transcript.

Reads from --file, or from stdin when --file is omitted.

Examples:
  nenavi minutes save 42 --file minutes.md
  cat minutes.md | nenavi minutes save 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinutesSave(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&minutesFile, "file", "f", "", "Markdown file to save (stdin when omitted)")

	return cmd
}

func runMinutesSave(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	var markdown []byte
	if minutesFile != "" {
		markdown, err = os.ReadFile(minutesFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", minutesFile, err)
		}
	} else {
		markdown, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}
	if len(markdown) == 0 {
		return fmt.Errorf("refusing to save empty minutes")
	}

	version, err := set.minutes.SaveVersion(cmd.Context(), id, string(markdown))
	if err != nil {
		return loginHint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved version %d (v%d)\n", version.ID, version.VersionNo)
	return nil
}

func newMinutesAIEditCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai-edit <version-id>",
		Short: "Rewrite a version with an AI instruction",
		Long: `Ask the backend's model to rewrite a minutes version according to an
instruction. The rewritten text is saved as a new version.

Examples:
  nenavi minutes ai-edit 11 --instruction "tighten the summary"
  nenavi minutes ai-edit 11 -i "translate to English" --model gpt-4o`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinutesAIEdit(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&minutesInstruction, "instruction", "i", "", "Edit instruction (required)")
	cmd.Flags().StringVar(&minutesModel, "model", "", "Model override")
	_ = cmd.MarkFlagRequired("instruction")

	return cmd
}

func runMinutesAIEdit(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	model := minutesModel
	if model == "" {
		model = set.cfg.Model
	}

	version, err := set.minutes.AIEdit(cmd.Context(), id, minutesInstruction, model)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("minutes version %d not found", id)
		}
		return loginHint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created version %d (v%d)\n", version.ID, version.VersionNo)
	return nil
}

func newMinutesRollbackCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <version-id>",
		Short: "Restore an old version as the new head",
		Long: `Copy an old version's content into a new head version. History is
kept; nothing is deleted.

Examples:
  nenavi minutes rollback 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinutesRollback(cmd, deps, args[0])
		},
	}
}

func runMinutesRollback(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	version, err := set.minutes.Rollback(cmd.Context(), id)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("minutes version %d not found", id)
		}
		return loginHint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Restored as version %d (v%d)\n", version.ID, version.VersionNo)
	return nil
}

func newMinutesDraftCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft <transcript-id>",
		Short: "Regenerate draft minutes for a transcript",
		Long: `Start draft minutes generation for a transcript. The draft is written
as a new version once the background task finishes; follow it with
'nenavi watch' or 'nenavi transcript list'.

Examples:
  nenavi minutes draft 42
  nenavi minutes draft 42 --model gpt-4o`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinutesDraft(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVar(&minutesModel, "model", "", "Model override")

	return cmd
}

func runMinutesDraft(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	model := minutesModel
	if model == "" {
		model = set.cfg.Model
	}

	taskID, err := set.minutes.GenerateDraft(cmd.Context(), id, model)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("transcript %d not found", id)
		}
		return loginHint(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Draft generation started (task %s)\n", taskID)
	return nil
}

func newMinutesDiffCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <transcript-id>",
		Short: "Diff two minutes versions",
		Long: `Show the difference between two minutes versions of a transcript.

Without --from/--to the two most recent versions are compared. Deleted
text is marked [-like this-], inserted text {+like this+}.

Examples:
  nenavi minutes diff 42
  nenavi minutes diff 42 --from 10 --to 13`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinutesDiff(cmd, deps, args[0])
		},
	}

	cmd.Flags().Int64Var(&minutesFrom, "from", 0, "Older version id (default second newest)")
	cmd.Flags().Int64Var(&minutesTo, "to", 0, "Newer version id (default newest)")

	return cmd
}

func runMinutesDiff(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	versions, err := set.minutes.ListVersions(cmd.Context(), id)
	if err != nil {
		return loginHint(err)
	}
	if len(versions) < 2 && (minutesFrom == 0 || minutesTo == 0) {
		return fmt.Errorf("transcript %d has fewer than two minutes versions", id)
	}

	// Versions come newest first; default to comparing the latest pair.
	fromID, toID := minutesFrom, minutesTo
	if toID == 0 {
		toID = versions[0].ID
	}
	if fromID == 0 {
		fromID = versions[1].ID
	}

	var from, to *client.MinutesVersion
	for i := range versions {
		switch versions[i].ID {
		case fromID:
			from = &versions[i]
		case toID:
			to = &versions[i]
		}
	}
	if from == nil {
		return fmt.Errorf("version %d does not belong to transcript %d", fromID, id)
	}
	if to == nil {
		return fmt.Errorf("version %d does not belong to transcript %d", toID, id)
	}

	segments := diff.Compute(from.Markdown, to.Markdown)
	stats := diff.Summarize(segments)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "v%d -> v%d: +%d -%d characters\n\n", from.VersionNo, to.VersionNo, stats.Inserted, stats.Deleted)
	if !stats.Changed() {
		fmt.Fprintln(out, "No changes.")
		return nil
	}
	fmt.Fprintln(out, diff.RenderText(segments))
	return nil
}

func newMinutesExportCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <version-id>",
		Short: "Export a minutes version to a file",
		Long: `Download a minutes version in the given format.

Formats: md, docx, pdf

Examples:
  nenavi minutes export 11 --format md
  nenavi minutes export 11 --format docx --out minutes.docx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMinutesExport(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVar(&minutesFormat, "format", client.VersionExportMarkdown, "Export format: md, docx, pdf")
	cmd.Flags().StringVar(&minutesOut, "out", "", "Output file (defaults to minutes-<id>.<format>)")

	return cmd
}

func runMinutesExport(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	body, _, err := set.minutes.ExportVersion(cmd.Context(), id, minutesFormat)
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("minutes version %d not found", id)
		}
		return loginHint(err)
	}
	defer body.Close()

	out := minutesOut
	if out == "" {
		out = fmt.Sprintf("minutes-%d.%s", id, minutesFormat)
	}

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	return nil
}

// firstLine returns the first non-empty line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
