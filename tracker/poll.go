package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/nb75km/nenavi-cli/client"
	"github.com/nb75km/nenavi-cli/pkg/logging"
)

// ErrTranscriptMissing is returned when a finished speech-to-text job has
// no matching transcript in the listing.
var ErrTranscriptMissing = errors.New("transcript not found for completed job")

// startPolling launches a poll loop for a task unless one is already
// running for that task.
func (t *Tracker) startPolling(ctx context.Context, key, taskID string, phase Phase) {
	t.mu.Lock()
	if t.polling[taskID] {
		t.mu.Unlock()
		return
	}
	t.polling[taskID] = true
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.polling, taskID)
			t.mu.Unlock()
		}()
		t.pollLoop(ctx, key, taskID, phase)
	}()
}

// pollLoop checks a task until it reaches a terminal state or the context
// is cancelled. Transient transport errors are logged and the loop keeps
// going; a single missed tick must not strand a row.
func (t *Tracker) pollLoop(ctx context.Context, key, taskID string, phase Phase) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result, err := t.backend.PollJob(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Debug("job poll failed",
				logging.F("task_id", taskID),
				logging.Err(err),
			)
			continue
		}
		if !result.Done {
			continue
		}

		if result.Job != nil && result.Job.Status.Failed() {
			msg := result.Job.Error
			if msg == "" {
				msg = "processing failed"
			}
			t.fail(key, msg)
			return
		}

		switch phase {
		case PhaseSTT:
			t.completeSTT(ctx, key, result.Job)
		default:
			t.advance(key, PhaseReady)
		}
		return
	}
}

// completeSTT handles a finished speech-to-text task: the placeholder row
// becomes a real transcript row in the draft phase and draft generation is
// chained onto it.
func (t *Tracker) completeSTT(ctx context.Context, key string, job *client.Job) {
	transcript, err := t.findTranscript(ctx, key, job)
	if err != nil {
		t.logger.Warn("transcript lookup after stt failed",
			logging.F("key", key),
			logging.Err(err),
		)
		t.fail(key, "transcript not found after transcription")
		return
	}

	t.mu.Lock()
	row, ok := t.rows[key]
	if !ok {
		t.mu.Unlock()
		return
	}
	row.TranscriptID = transcript.ID
	row.Filename = transcript.Filename
	if PhaseDraft.rank() > row.Phase.rank() {
		row.Phase = PhaseDraft
	}
	row.TaskID = ""
	t.mu.Unlock()
	t.notify()

	taskID, err := t.backend.GenerateDraft(ctx, transcript.ID, t.model)
	if err != nil {
		t.logger.Warn("draft generation request failed",
			logging.F("transcript_id", transcript.ID),
			logging.Err(err),
		)
		t.fail(key, "draft generation failed to start")
		return
	}

	t.mu.Lock()
	if row, ok := t.rows[key]; ok {
		row.TaskID = taskID
	}
	t.mu.Unlock()

	t.startPolling(ctx, key, taskID, PhaseDraft)
}

// findTranscript locates the transcript a finished job produced. The job
// record's transcript id is authoritative when present; otherwise the
// listing is matched by file id.
func (t *Tracker) findTranscript(ctx context.Context, key string, job *client.Job) (*client.Transcript, error) {
	transcripts, err := t.backend.ListTranscripts(ctx, t.limit, client.OrderDesc)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	fileID := ""
	if row, ok := t.rows[key]; ok {
		fileID = row.FileID
	}
	t.mu.Unlock()

	for i := range transcripts {
		tr := &transcripts[i]
		if job != nil && job.TranscriptID != nil && tr.ID == *job.TranscriptID {
			return tr, nil
		}
		if fileID != "" && tr.FileID == fileID {
			return tr, nil
		}
	}
	return nil, ErrTranscriptMissing
}

// advance moves a row's phase forward. Backward transitions are ignored.
func (t *Tracker) advance(key string, phase Phase) {
	t.mu.Lock()
	row, ok := t.rows[key]
	if ok && phase.rank() > row.Phase.rank() {
		row.Phase = phase
		row.TaskID = ""
	}
	t.mu.Unlock()
	if ok {
		t.notify()
	}
}

// fail marks a row as failed with a message.
func (t *Tracker) fail(key, msg string) {
	t.mu.Lock()
	row, ok := t.rows[key]
	if ok && PhaseError.rank() > row.Phase.rank() {
		row.Phase = PhaseError
		row.Err = msg
		row.TaskID = ""
	}
	t.mu.Unlock()
	if ok {
		t.notify()
	}
}
