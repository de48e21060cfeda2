package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"
)

// MinutesClient talks to the minutes version endpoints of the minutes
// service. Versions are append only: edits create a new version with the
// next version number, never rewrite an existing one.
type MinutesClient struct {
	client *Client
}

// NewMinutesClient creates a new minutes client.
func NewMinutesClient(client *Client) *MinutesClient {
	return &MinutesClient{client: client}
}

// MinutesVersion is one snapshot of a transcript's minutes markdown.
type MinutesVersion struct {
	ID           int64     `json:"id"`
	TranscriptID int64     `json:"transcript_id"`
	VersionNo    int       `json:"version_no"`
	Markdown     string    `json:"markdown"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListVersions returns all versions of a transcript's minutes, newest first.
func (m *MinutesClient) ListVersions(ctx context.Context, transcriptID int64) ([]MinutesVersion, error) {
	query := url.Values{}
	query.Set("transcript_id", strconv.FormatInt(transcriptID, 10))

	var versions []MinutesVersion
	if err := m.client.GetJSON(ctx, "/minutes_versions", query, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// GetVersion returns one minutes version by id.
func (m *MinutesClient) GetVersion(ctx context.Context, versionID int64) (*MinutesVersion, error) {
	var version MinutesVersion
	path := fmt.Sprintf("/minutes_versions/%d", versionID)
	if err := m.client.GetJSON(ctx, path, nil, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// createVersionRequest is the payload for saving new minutes content. The
// transcript goes in the query string, not the body.
type createVersionRequest struct {
	Markdown string `json:"markdown"`
}

// SaveVersion stores markdown as a new version of the transcript's minutes.
// The backend assigns the next version number.
func (m *MinutesClient) SaveVersion(ctx context.Context, transcriptID int64, markdown string) (*MinutesVersion, error) {
	var version MinutesVersion
	query := url.Values{}
	query.Set("transcript_id", strconv.FormatInt(transcriptID, 10))
	err := m.client.PostJSON(ctx, "/minutes_versions", query, createVersionRequest{Markdown: markdown}, &version)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// aiEditRequest is the payload for an AI rewrite of a version.
type aiEditRequest struct {
	Instruction string `json:"instruction"`
	Model       string `json:"model,omitempty"`
}

// AIEdit asks the backend to rewrite a version per the instruction. The
// result is saved as a new version and returned.
func (m *MinutesClient) AIEdit(ctx context.Context, versionID int64, instruction, model string) (*MinutesVersion, error) {
	var version MinutesVersion
	path := fmt.Sprintf("/minutes_versions/%d/ai_edit", versionID)
	err := m.client.PostJSON(ctx, path, nil, aiEditRequest{
		Instruction: instruction,
		Model:       model,
	}, &version)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// Rollback copies an old version's content into a new head version. The
// history stays intact; rollback never deletes versions.
func (m *MinutesClient) Rollback(ctx context.Context, versionID int64) (*MinutesVersion, error) {
	var version MinutesVersion
	path := fmt.Sprintf("/minutes_versions/%d/rollback", versionID)
	if err := m.client.PostJSON(ctx, path, nil, nil, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// draftRequest is the payload for draft generation.
type draftRequest struct {
	Model string `json:"model,omitempty"`
}

// draftResponse carries the async task id for a draft generation job.
type draftResponse struct {
	TaskID string `json:"task_id"`
}

// GenerateDraft starts asynchronous draft generation for a transcript and
// returns the task id to poll.
func (m *MinutesClient) GenerateDraft(ctx context.Context, transcriptID int64, model string) (string, error) {
	var resp draftResponse
	path := fmt.Sprintf("/%d/draft", transcriptID)
	if err := m.client.PostJSON(ctx, path, nil, draftRequest{Model: model}, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// Version export formats supported by the backend.
const (
	VersionExportMarkdown = "md"
	VersionExportDocx     = "docx"
	VersionExportPDF      = "pdf"
)

// ExportVersion downloads a minutes version in the given format. The caller
// must close the returned reader.
func (m *MinutesClient) ExportVersion(ctx context.Context, versionID int64, format string) (io.ReadCloser, string, error) {
	query := url.Values{}
	query.Set("format", format)
	path := fmt.Sprintf("/minutes/%d/export", versionID)
	return m.client.GetRaw(ctx, path, query)
}
