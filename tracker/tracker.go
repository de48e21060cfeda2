// Package tracker reconciles the transcript list with the backend's
// background jobs. Uploaded files move through speech-to-text, then draft
// generation, then become ready transcripts; the tracker maintains one row
// per file across those phases and drives the polling that advances them.
package tracker

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/nb75km/nenavi-cli/client"
	"github.com/nb75km/nenavi-cli/pkg/logging"
)

// Phase is the tracker's view of where a file is in its pipeline.
type Phase string

const (
	// PhaseSTT means speech-to-text is running or queued.
	PhaseSTT Phase = "stt"
	// PhaseDraft means the transcript exists and draft minutes are being
	// generated.
	PhaseDraft Phase = "draft"
	// PhaseReady means the transcript and its draft minutes are complete.
	PhaseReady Phase = "ready"
	// PhaseError means the pipeline failed for this file.
	PhaseError Phase = "error"
)

// rank orders phases so transitions only ever move forward. Error outranks
// everything; a failed row never resurrects.
func (p Phase) rank() int {
	switch p {
	case PhaseSTT:
		return 0
	case PhaseDraft:
		return 1
	case PhaseReady:
		return 2
	case PhaseError:
		return 3
	default:
		return -1
	}
}

// Row is one tracked file. Rows for files still in flight are keyed by
// file id; once the transcript exists the row carries its id and filename.
type Row struct {
	// Key uniquely identifies the row across phase changes.
	Key string
	// TranscriptID is set once speech-to-text completed.
	TranscriptID int64
	// FileID is the uploaded file's id.
	FileID string
	// Filename is the uploaded file's name, when known.
	Filename string
	// Phase is the row's pipeline phase.
	Phase Phase
	// TaskID is the background task currently being polled, if any.
	TaskID string
	// Err holds the failure message when Phase is PhaseError.
	Err string
	// CreatedAt orders rows newest first.
	CreatedAt time.Time
}

// rowKey builds a stable key. In-flight rows key on file id so the
// placeholder and the transcript that replaces it share identity; job
// listings without a file id fall back to the task id so concurrent jobs
// stay distinct.
func rowKey(fileID string, transcriptID int64, taskID string) string {
	if fileID != "" {
		return "file:" + fileID
	}
	if transcriptID != 0 {
		return "transcript:" + strconv.FormatInt(transcriptID, 10)
	}
	return "task:" + taskID
}

// Merge builds the row set from a transcript listing and the job listing.
// Every transcript becomes a ready row; jobs that have not produced a
// transcript yet become placeholder rows in the phase their status implies.
// Jobs whose transcript already appears in the listing are dropped, the
// transcript row wins.
func Merge(transcripts []client.Transcript, jobs []client.Job) []Row {
	rows := make([]Row, 0, len(transcripts)+len(jobs))
	seenTranscripts := make(map[int64]bool, len(transcripts))

	for _, t := range transcripts {
		seenTranscripts[t.ID] = true
		rows = append(rows, Row{
			Key:          rowKey(t.FileID, t.ID, ""),
			TranscriptID: t.ID,
			FileID:       t.FileID,
			Filename:     t.Filename,
			Phase:        PhaseReady,
			CreatedAt:    t.CreatedAt,
		})
	}

	for _, j := range jobs {
		if j.TranscriptID != nil && seenTranscripts[*j.TranscriptID] {
			continue
		}

		var phase Phase
		switch {
		case j.Status.Failed():
			phase = PhaseError
		case j.Status == client.JobStatusPending:
			phase = PhaseSTT
		case j.Status == client.JobStatusProcessing:
			phase = PhaseDraft
		default:
			// DRAFT_READY without a listed transcript; the transcript
			// listing lags, surface it as draft until the next refresh.
			phase = PhaseDraft
		}

		row := Row{
			Key:       rowKey(j.FileID, 0, j.TaskID),
			FileID:    j.FileID,
			Phase:     phase,
			TaskID:    j.TaskID,
			CreatedAt: j.CreatedAt,
		}
		if j.TranscriptID != nil {
			row.TranscriptID = *j.TranscriptID
		}
		if phase == PhaseError {
			row.Err = j.Error
			if row.Err == "" {
				row.Err = "processing failed"
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, k int) bool {
		return rows[i].CreatedAt.After(rows[k].CreatedAt)
	})
	return rows
}

// Backend is the slice of the API the tracker needs. *client implementations
// satisfy it via the Clients adapter; tests substitute fakes.
type Backend interface {
	ListTranscripts(ctx context.Context, limit int, order client.ListOrder) ([]client.Transcript, error)
	ListJobs(ctx context.Context) ([]client.Job, error)
	PollJob(ctx context.Context, taskID string) (*client.PollResult, error)
	GenerateDraft(ctx context.Context, transcriptID int64, model string) (string, error)
	DeleteTranscript(ctx context.Context, id int64) error
}

// Clients adapts the per-area API clients to the Backend interface.
type Clients struct {
	Transcripts *client.TranscriptClient
	Jobs        *client.JobsClient
	Minutes     *client.MinutesClient
}

func (c Clients) ListTranscripts(ctx context.Context, limit int, order client.ListOrder) ([]client.Transcript, error) {
	return c.Transcripts.List(ctx, limit, order)
}

func (c Clients) ListJobs(ctx context.Context) ([]client.Job, error) {
	return c.Jobs.List(ctx)
}

func (c Clients) PollJob(ctx context.Context, taskID string) (*client.PollResult, error) {
	return c.Jobs.Poll(ctx, taskID)
}

func (c Clients) GenerateDraft(ctx context.Context, transcriptID int64, model string) (string, error) {
	return c.Minutes.GenerateDraft(ctx, transcriptID, model)
}

func (c Clients) DeleteTranscript(ctx context.Context, id int64) error {
	return c.Transcripts.Delete(ctx, id)
}

// Options configures a Tracker.
type Options struct {
	// PollInterval is the delay between job status checks. Defaults to 3s.
	PollInterval time.Duration
	// ListLimit caps the transcript listing. Defaults to 100.
	ListLimit int
	// Model is the model name sent with chained draft requests.
	Model string
	// Logger defaults to a no-op.
	Logger logging.Logger
}

// Tracker owns the row set and the poll goroutines advancing it.
type Tracker struct {
	backend  Backend
	interval time.Duration
	limit    int
	model    string
	logger   logging.Logger

	mu      sync.Mutex
	rows    map[string]*Row
	polling map[string]bool

	updates chan struct{}
	wg      sync.WaitGroup
}

// New creates a Tracker over the given backend.
func New(backend Backend, opts Options) *Tracker {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	limit := opts.ListLimit
	if limit <= 0 {
		limit = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Tracker{
		backend:  backend,
		interval: interval,
		limit:    limit,
		model:    opts.Model,
		logger:   logger,
		rows:     make(map[string]*Row),
		polling:  make(map[string]bool),
		updates:  make(chan struct{}, 1),
	}
}

// Updates returns a channel that receives a signal whenever the row set
// changes. Signals are coalesced.
func (t *Tracker) Updates() <-chan struct{} {
	return t.updates
}

// notify signals a row set change without blocking.
func (t *Tracker) notify() {
	select {
	case t.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns the current rows, newest first.
func (t *Tracker) Snapshot() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, *r)
	}
	sort.SliceStable(rows, func(i, k int) bool {
		return rows[i].CreatedAt.After(rows[k].CreatedAt)
	})
	return rows
}

// Refresh reloads transcripts and jobs from the backend, rebuilds the row
// set and starts polling every row that still has work in flight.
func (t *Tracker) Refresh(ctx context.Context) error {
	transcripts, err := t.backend.ListTranscripts(ctx, t.limit, client.OrderDesc)
	if err != nil {
		return err
	}
	jobs, err := t.backend.ListJobs(ctx)
	if err != nil {
		return err
	}

	merged := Merge(transcripts, jobs)

	t.mu.Lock()
	t.rows = make(map[string]*Row, len(merged))
	for i := range merged {
		row := merged[i]
		t.rows[row.Key] = &row
	}
	t.mu.Unlock()
	t.notify()

	for i := range merged {
		row := merged[i]
		if row.TaskID != "" && (row.Phase == PhaseSTT || row.Phase == PhaseDraft) {
			t.startPolling(ctx, row.Key, row.TaskID, row.Phase)
		}
	}
	return nil
}

// Track registers a freshly uploaded file and starts polling its
// speech-to-text task.
func (t *Tracker) Track(ctx context.Context, fileID, filename, taskID string) {
	key := rowKey(fileID, 0, taskID)

	t.mu.Lock()
	t.rows[key] = &Row{
		Key:       key,
		FileID:    fileID,
		Filename:  filename,
		Phase:     PhaseSTT,
		TaskID:    taskID,
		CreatedAt: time.Now(),
	}
	t.mu.Unlock()
	t.notify()

	t.startPolling(ctx, key, taskID, PhaseSTT)
}

// Delete removes a transcript on the backend and, only after that
// succeeded, drops its row. Failed deletes leave the row in place.
func (t *Tracker) Delete(ctx context.Context, transcriptID int64) error {
	if err := t.backend.DeleteTranscript(ctx, transcriptID); err != nil {
		return err
	}

	t.mu.Lock()
	for key, row := range t.rows {
		if row.TranscriptID == transcriptID {
			delete(t.rows, key)
		}
	}
	t.mu.Unlock()
	t.notify()
	return nil
}

// Wait blocks until all poll goroutines have finished. Useful after
// cancelling the context they were started with.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Idle reports whether any row still has work in flight.
func (t *Tracker) Idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range t.rows {
		if row.Phase == PhaseSTT || row.Phase == PhaseDraft {
			return false
		}
	}
	return true
}
