package client

import (
	"context"
	"io"
)

// FilesClient talks to the audio upload endpoint of the minutes service.
type FilesClient struct {
	client *Client
}

// NewFilesClient creates a new files client.
func NewFilesClient(client *Client) *FilesClient {
	return &FilesClient{client: client}
}

// uploadResponse is the backend's answer to a file upload. Older
// deployments return the task id under "job_id".
type uploadResponse struct {
	FileID string `json:"file_id"`
	TaskID string `json:"task_id"`
	JobID  string `json:"job_id"`
}

// UploadResult identifies the uploaded file and the speech-to-text task
// started for it.
type UploadResult struct {
	FileID string
	TaskID string
}

// Upload sends an audio file to the backend, which stores it and starts
// transcription. wrap, when non-nil, wraps the file reader for progress
// display.
func (f *FilesClient) Upload(ctx context.Context, fileName string, file io.Reader, wrap func(io.Reader) io.Reader) (*UploadResult, error) {
	var resp uploadResponse
	if err := f.client.PostMultipart(ctx, "/files", "file", fileName, file, &resp, wrap); err != nil {
		return nil, err
	}

	taskID := resp.TaskID
	if taskID == "" {
		taskID = resp.JobID
	}

	return &UploadResult{
		FileID: resp.FileID,
		TaskID: taskID,
	}, nil
}
