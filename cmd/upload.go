package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/nb75km/nenavi-cli/tracker"
)

// Upload command flags.
var (
	uploadWait bool
)

// NewUploadCommand creates the upload command.
func NewUploadCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "upload <audio-file>...",
		Short: "Upload audio for transcription",
		Long: `Upload one or more audio files. The backend stores each file and
starts speech-to-text; once that finishes, draft minutes are generated
automatically.

With --wait the command polls until every file has finished the whole
pipeline (or failed). Without it, use 'nenavi transcript list' or
'nenavi watch' to follow progress.

Examples:
  nenavi upload standup.wav
  nenavi upload *.mp3 --wait`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, deps, args)
		},
	}

	cmd.Flags().BoolVar(&uploadWait, "wait", false, "Wait until transcription and drafting complete")

	return cmd
}

func runUpload(cmd *cobra.Command, deps *Deps, paths []string) error {
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

	showProgress := term.IsTerminal(int(os.Stderr.Fd()))

	var progress *mpb.Progress
	if showProgress {
		progress = mpb.New(mpb.WithWidth(40), mpb.WithOutput(cmd.ErrOrStderr()))
	}

	for _, path := range paths {
		result, err := uploadOne(cmd, set, progress, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (file %s, task %s)\n",
			filepath.Base(path), result.fileID, result.taskID)

		if uploadWait {
			tr.Track(cmd.Context(), result.fileID, filepath.Base(path), result.taskID)
		}
	}

	if progress != nil {
		progress.Wait()
	}

	if !uploadWait {
		return nil
	}

	return waitForRows(cmd, tr)
}

type uploadOutcome struct {
	fileID string
	taskID string
}

func uploadOne(cmd *cobra.Command, set *clientSet, progress *mpb.Progress, path string) (*uploadOutcome, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var wrap func(io.Reader) io.Reader
	if progress != nil {
		bar := progress.AddBar(info.Size(),
			mpb.PrependDecorators(
				decor.Name(filepath.Base(path)+" "),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
		wrap = func(r io.Reader) io.Reader {
			return bar.ProxyReader(io.NopCloser(r))
		}
	}

	result, err := set.files.Upload(cmd.Context(), path, file, wrap)
	if err != nil {
		return nil, loginHint(fmt.Errorf("uploading %s: %w", path, err))
	}
	if result.TaskID == "" {
		return nil, fmt.Errorf("upload of %s returned no task id", path)
	}

	return &uploadOutcome{fileID: result.FileID, taskID: result.TaskID}, nil
}

// waitForRows blocks until the tracker has no more in-flight rows, then
// prints the final state of each.
func waitForRows(cmd *cobra.Command, tr *tracker.Tracker) error {
	// The ticker backstops a signal consumed between the Idle check and
	// the select.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for !tr.Idle() {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-tr.Updates():
		case <-ticker.C:
		}
	}

	var failed int
	for _, row := range tr.Snapshot() {
		switch row.Phase {
		case tracker.PhaseReady:
			fmt.Fprintf(cmd.OutOrStdout(), "Ready: transcript %d (%s)\n", row.TranscriptID, row.Filename)
		case tracker.PhaseError:
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed: %s: %s\n", row.Filename, row.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}
