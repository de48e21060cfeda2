package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nb75km/nenavi-cli/client"
)

// fakeBackend is a scriptable in-memory backend.
type fakeBackend struct {
	mu          sync.Mutex
	transcripts []client.Transcript
	jobs        []client.Job
	pollResults map[string][]pollStep
	pollCalls   map[string]int
	draftTasks  map[int64]string
	draftErr    error
	listErr     error
	deleteErr   error
	deleted     []int64
}

type pollStep struct {
	result *client.PollResult
	err    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		pollResults: make(map[string][]pollStep),
		pollCalls:   make(map[string]int),
		draftTasks:  make(map[int64]string),
	}
}

func (f *fakeBackend) ListTranscripts(ctx context.Context, limit int, order client.ListOrder) ([]client.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]client.Transcript, len(f.transcripts))
	copy(out, f.transcripts)
	return out, nil
}

func (f *fakeBackend) ListJobs(ctx context.Context) ([]client.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]client.Job, len(f.jobs))
	copy(out, f.jobs)
	return out, nil
}

func (f *fakeBackend) PollJob(ctx context.Context, taskID string) (*client.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	steps := f.pollResults[taskID]
	idx := f.pollCalls[taskID]
	f.pollCalls[taskID]++

	if len(steps) == 0 {
		return &client.PollResult{Done: false}, nil
	}
	if idx >= len(steps) {
		idx = len(steps) - 1
	}
	step := steps[idx]
	return step.result, step.err
}

func (f *fakeBackend) GenerateDraft(ctx context.Context, transcriptID int64, model string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draftErr != nil {
		return "", f.draftErr
	}
	taskID, ok := f.draftTasks[transcriptID]
	if !ok {
		return "", errors.New("no draft task scripted")
	}
	return taskID, nil
}

func (f *fakeBackend) DeleteTranscript(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	for i, tr := range f.transcripts {
		if tr.ID == id {
			f.transcripts = append(f.transcripts[:i], f.transcripts[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) addTranscript(tr client.Transcript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, tr)
}

func newTestTracker(backend Backend) *Tracker {
	return New(backend, Options{
		PollInterval: 5 * time.Millisecond,
		Model:        "gpt-4o-mini",
	})
}

func rowByKey(tr *Tracker, key string) (Row, bool) {
	for _, row := range tr.Snapshot() {
		if row.Key == key {
			return row, true
		}
	}
	return Row{}, false
}

func waitForPhase(t *testing.T, tr *Tracker, key string, phase Phase) Row {
	t.Helper()
	var row Row
	require.Eventually(t, func() bool {
		r, ok := rowByKey(tr, key)
		if ok && r.Phase == phase {
			row = r
			return true
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "row %s never reached phase %s", key, phase)
	return row
}

func TestMerge(t *testing.T) {
	now := time.Now()
	transcriptID := int64(1)

	transcripts := []client.Transcript{
		{ID: 1, FileID: "f-1", Filename: "standup.wav", CreatedAt: now.Add(-time.Hour)},
	}
	jobs := []client.Job{
		// Job for an already listed transcript; must be dropped.
		{ID: 10, TaskID: "t-done", TranscriptID: &transcriptID, Status: client.JobStatusDraftReady, CreatedAt: now.Add(-time.Hour)},
		// Pending upload, newest.
		{ID: 11, TaskID: "t-stt", FileID: "f-2", Status: client.JobStatusPending, CreatedAt: now},
		// Processing job.
		{ID: 12, TaskID: "t-draft", FileID: "f-3", Status: client.JobStatusProcessing, CreatedAt: now.Add(-30 * time.Minute)},
		// Failed job.
		{ID: 13, TaskID: "t-bad", FileID: "f-4", Status: client.JobStatusFailed, Error: "whisper crashed", CreatedAt: now.Add(-45 * time.Minute)},
	}

	rows := Merge(transcripts, jobs)
	require.Len(t, rows, 4)

	// Newest first.
	assert.Equal(t, PhaseSTT, rows[0].Phase)
	assert.Equal(t, "f-2", rows[0].FileID)

	assert.Equal(t, PhaseDraft, rows[1].Phase)
	assert.Equal(t, "f-3", rows[1].FileID)

	assert.Equal(t, PhaseError, rows[2].Phase)
	assert.Equal(t, "whisper crashed", rows[2].Err)

	assert.Equal(t, PhaseReady, rows[3].Phase)
	assert.Equal(t, int64(1), rows[3].TranscriptID)
	assert.Equal(t, "standup.wav", rows[3].Filename)
}

func TestMerge_FailedJobWithoutMessage(t *testing.T) {
	rows := Merge(nil, []client.Job{
		{ID: 1, TaskID: "t-1", FileID: "f-1", Status: client.JobStatusFailed},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "processing failed", rows[0].Err)
}

func TestPhaseOrdering(t *testing.T) {
	assert.Less(t, PhaseSTT.rank(), PhaseDraft.rank())
	assert.Less(t, PhaseDraft.rank(), PhaseReady.rank())
	assert.Less(t, PhaseReady.rank(), PhaseError.rank())
}

func TestTracker_FullPipeline(t *testing.T) {
	backend := newFakeBackend()
	backend.pollResults["t-stt"] = []pollStep{
		{result: &client.PollResult{Done: false}},
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-stt", Status: client.JobStatusDraftReady}}},
	}
	backend.pollResults["t-draft"] = []pollStep{
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-draft", Status: client.JobStatusDraftReady}}},
	}
	backend.draftTasks[7] = "t-draft"

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Track(ctx, "f-1", "standup.wav", "t-stt")

	row, ok := rowByKey(tr, "file:f-1")
	require.True(t, ok)
	assert.Equal(t, PhaseSTT, row.Phase)

	// The transcript appears on the backend while stt is running.
	backend.addTranscript(client.Transcript{ID: 7, FileID: "f-1", Filename: "standup.wav", CreatedAt: time.Now()})

	row = waitForPhase(t, tr, "file:f-1", PhaseReady)
	assert.Equal(t, int64(7), row.TranscriptID)
	assert.Equal(t, "standup.wav", row.Filename)
	assert.Empty(t, row.TaskID)

	cancel()
	tr.Wait()
	assert.True(t, tr.Idle())
}

func TestTracker_STTFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.pollResults["t-stt"] = []pollStep{
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-stt", Status: client.JobStatusFailed, Error: "audio too short"}}},
	}

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Track(ctx, "f-1", "clip.wav", "t-stt")

	row := waitForPhase(t, tr, "file:f-1", PhaseError)
	assert.Equal(t, "audio too short", row.Err)

	cancel()
	tr.Wait()
}

func TestTracker_TranscriptMissingAfterSTT(t *testing.T) {
	backend := newFakeBackend()
	// STT finishes but no transcript ever shows up in the listing.
	backend.pollResults["t-stt"] = []pollStep{
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-stt", Status: client.JobStatusDraftReady}}},
	}

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Track(ctx, "f-1", "lost.wav", "t-stt")

	row := waitForPhase(t, tr, "file:f-1", PhaseError)
	assert.Contains(t, row.Err, "not found")

	cancel()
	tr.Wait()
}

func TestTracker_DraftRequestFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.pollResults["t-stt"] = []pollStep{
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-stt", Status: client.JobStatusDraftReady}}},
	}
	backend.addTranscript(client.Transcript{ID: 7, FileID: "f-1", Filename: "a.wav", CreatedAt: time.Now()})
	backend.draftErr = errors.New("draft endpoint down")

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Track(ctx, "f-1", "a.wav", "t-stt")

	row := waitForPhase(t, tr, "file:f-1", PhaseError)
	assert.Contains(t, row.Err, "draft generation")

	cancel()
	tr.Wait()
}

func TestTracker_TransientPollErrorsAreRetried(t *testing.T) {
	backend := newFakeBackend()
	backend.pollResults["t-stt"] = []pollStep{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-stt", Status: client.JobStatusDraftReady}}},
	}
	backend.pollResults["t-draft"] = []pollStep{
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-draft", Status: client.JobStatusDraftReady}}},
	}
	backend.addTranscript(client.Transcript{ID: 7, FileID: "f-1", Filename: "a.wav", CreatedAt: time.Now()})
	backend.draftTasks[7] = "t-draft"

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Track(ctx, "f-1", "a.wav", "t-stt")

	waitForPhase(t, tr, "file:f-1", PhaseReady)

	cancel()
	tr.Wait()
}

func TestTracker_Refresh(t *testing.T) {
	backend := newFakeBackend()
	backend.addTranscript(client.Transcript{ID: 1, FileID: "f-1", Filename: "old.wav", CreatedAt: time.Now().Add(-time.Hour)})
	backend.mu.Lock()
	backend.jobs = []client.Job{
		{ID: 2, TaskID: "t-2", FileID: "f-2", Status: client.JobStatusPending, CreatedAt: time.Now()},
	}
	backend.mu.Unlock()
	backend.pollResults["t-2"] = []pollStep{
		{result: &client.PollResult{Done: false}},
	}

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, tr.Refresh(ctx))

	rows := tr.Snapshot()
	require.Len(t, rows, 2)
	assert.Equal(t, PhaseSTT, rows[0].Phase)
	assert.Equal(t, PhaseReady, rows[1].Phase)
	assert.False(t, tr.Idle())

	cancel()
	tr.Wait()
}

func TestTracker_RefreshKeepsBareJobsDistinct(t *testing.T) {
	backend := newFakeBackend()
	backend.mu.Lock()
	// Job listings without file ids still need one row per task.
	backend.jobs = []client.Job{
		{ID: 1, TaskID: "t-1", Status: client.JobStatusPending, CreatedAt: time.Now()},
		{ID: 2, TaskID: "t-2", Status: client.JobStatusPending, CreatedAt: time.Now().Add(-time.Minute)},
	}
	backend.mu.Unlock()

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, tr.Refresh(ctx))

	rows := tr.Snapshot()
	require.Len(t, rows, 2)
	assert.NotEqual(t, rows[0].Key, rows[1].Key)
	assert.Equal(t, "t-1", rows[0].TaskID)
	assert.Equal(t, "t-2", rows[1].TaskID)

	cancel()
	tr.Wait()
}

func TestTracker_WorkerStateSuccessCompletesSTT(t *testing.T) {
	backend := newFakeBackend()
	backend.pollResults["t-stt"] = []pollStep{
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-stt", Status: client.JobStatusSuccess}}},
	}
	backend.pollResults["t-draft"] = []pollStep{
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-draft", Status: client.JobStatusSuccess}}},
	}
	backend.draftTasks[9] = "t-draft"
	backend.addTranscript(client.Transcript{ID: 9, FileID: "f-9", Filename: "allhands.wav", CreatedAt: time.Now()})

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Track(ctx, "f-9", "allhands.wav", "t-stt")

	row := waitForPhase(t, tr, "file:f-9", PhaseReady)
	assert.Equal(t, int64(9), row.TranscriptID)

	cancel()
	tr.Wait()
}

func TestTracker_WorkerStateFailureFailsRow(t *testing.T) {
	backend := newFakeBackend()
	backend.pollResults["t-stt"] = []pollStep{
		{result: &client.PollResult{Done: true, Job: &client.Job{TaskID: "t-stt", Status: client.JobStatusFailure, Error: "worker died"}}},
	}

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Track(ctx, "f-1", "a.wav", "t-stt")

	row := waitForPhase(t, tr, "file:f-1", PhaseError)
	assert.Equal(t, "worker died", row.Err)

	cancel()
	tr.Wait()
}

func TestTracker_RefreshListError(t *testing.T) {
	backend := newFakeBackend()
	backend.listErr = errors.New("backend down")

	tr := newTestTracker(backend)
	assert.Error(t, tr.Refresh(context.Background()))
}

func TestTracker_Delete(t *testing.T) {
	backend := newFakeBackend()
	backend.addTranscript(client.Transcript{ID: 5, FileID: "f-5", Filename: "x.wav", CreatedAt: time.Now()})

	tr := newTestTracker(backend)
	require.NoError(t, tr.Refresh(context.Background()))
	require.Len(t, tr.Snapshot(), 1)

	require.NoError(t, tr.Delete(context.Background(), 5))
	assert.Empty(t, tr.Snapshot())
	assert.Equal(t, []int64{5}, backend.deleted)
}

func TestTracker_DeleteFailureKeepsRow(t *testing.T) {
	backend := newFakeBackend()
	backend.addTranscript(client.Transcript{ID: 5, FileID: "f-5", Filename: "x.wav", CreatedAt: time.Now()})

	tr := newTestTracker(backend)
	require.NoError(t, tr.Refresh(context.Background()))

	backend.mu.Lock()
	backend.deleteErr = errors.New("forbidden")
	backend.mu.Unlock()

	assert.Error(t, tr.Delete(context.Background(), 5))
	assert.Len(t, tr.Snapshot(), 1)
}

func TestTracker_UpdatesSignalled(t *testing.T) {
	backend := newFakeBackend()
	tr := newTestTracker(backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Track(ctx, "f-1", "a.wav", "t-1")

	select {
	case <-tr.Updates():
	case <-time.After(time.Second):
		t.Fatal("no update signal after Track")
	}

	cancel()
	tr.Wait()
}

func TestTracker_CancellationStopsPolling(t *testing.T) {
	backend := newFakeBackend()
	// Never finishes.
	backend.pollResults["t-1"] = []pollStep{
		{result: &client.PollResult{Done: false}},
	}

	tr := newTestTracker(backend)
	ctx, cancel := context.WithCancel(context.Background())

	tr.Track(ctx, "f-1", "a.wav", "t-1")
	cancel()

	done := make(chan struct{})
	go func() {
		tr.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll goroutines did not stop after cancellation")
	}
}
