package client

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// JobsClient talks to the background job endpoints of the minutes service.
type JobsClient struct {
	client *Client
}

// NewJobsClient creates a new jobs client.
func NewJobsClient(client *Client) *JobsClient {
	return &JobsClient{client: client}
}

// JobStatus is the backend's lifecycle state for a background task. The
// listing endpoint speaks PENDING/PROCESSING/DRAFT_READY/FAILED while the
// single-job endpoint reports raw worker states (PENDING/STARTED/RETRY/
// SUCCESS/FAILURE), so both vocabularies are recognized.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusStarted    JobStatus = "STARTED"
	JobStatusRetry      JobStatus = "RETRY"
	JobStatusDraftReady JobStatus = "DRAFT_READY"
	JobStatusSuccess    JobStatus = "SUCCESS"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusFailure    JobStatus = "FAILURE"
)

// InProgress reports whether the status is a known non-terminal state.
func (s JobStatus) InProgress() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusStarted, JobStatusRetry:
		return true
	}
	return false
}

// Failed reports whether the status is a failure state in either
// vocabulary.
func (s JobStatus) Failed() bool {
	return s == JobStatusFailed || s == JobStatusFailure
}

// Job is a background task record. TaskID identifies the async worker task;
// TranscriptID is set once speech-to-text has produced a transcript. State
// mirrors the single-job endpoint's field name for the same lifecycle value.
type Job struct {
	ID           int64     `json:"id"`
	TaskID       string    `json:"task_id"`
	FileID       string    `json:"file_id,omitempty"`
	TranscriptID *int64    `json:"transcript_id,omitempty"`
	Status       JobStatus `json:"status"`
	State        JobStatus `json:"state,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// List returns all known jobs.
func (j *JobsClient) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := j.client.GetJSON(ctx, "/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// PollResult is the outcome of a single job status check.
type PollResult struct {
	// Done is true once the backend answered 200 with a finished task.
	Done bool
	// Job is the job record when one was decoded, nil otherwise.
	Job *Job
}

// Poll checks a task once by id. The backend answers 202 while the task is
// queued or running and 200 once it has a result, so a 200 means done
// unless the body explicitly carries an in-progress status. Failed tasks
// report Done with a failure status rather than an error; transport
// problems are returned as errors so callers can decide whether to keep
// polling.
func (j *JobsClient) Poll(ctx context.Context, taskID string) (*PollResult, error) {
	var job Job
	status, err := j.client.GetStatus(ctx, fmt.Sprintf("/jobs/%s", taskID), &job)
	if err != nil {
		return nil, err
	}

	if job.Status == "" {
		job.Status = job.State
	}
	if status != http.StatusOK || job.Status.InProgress() {
		return &PollResult{Done: false, Job: &job}, nil
	}
	return &PollResult{Done: true, Job: &job}, nil
}
