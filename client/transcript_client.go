package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"
)

// TranscriptClient talks to the transcript endpoints of the minutes service.
type TranscriptClient struct {
	client *Client
}

// NewTranscriptClient creates a new transcript client.
func NewTranscriptClient(client *Client) *TranscriptClient {
	return &TranscriptClient{client: client}
}

// Transcript is a completed speech-to-text result.
type Transcript struct {
	ID        int64     `json:"id"`
	FileID    string    `json:"file_id"`
	Filename  string    `json:"filename"`
	Language  string    `json:"language,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// transcriptListResponse wraps the list endpoint's envelope.
type transcriptListResponse struct {
	Items []Transcript `json:"items"`
}

// ListOrder controls transcript list ordering.
type ListOrder string

const (
	// OrderDesc lists newest first.
	OrderDesc ListOrder = "desc"
	// OrderAsc lists oldest first.
	OrderAsc ListOrder = "asc"
)

// List returns transcripts, newest first by default.
func (t *TranscriptClient) List(ctx context.Context, limit int, order ListOrder) ([]Transcript, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if order != "" {
		query.Set("order", string(order))
	}

	var resp transcriptListResponse
	if err := t.client.GetJSON(ctx, "/transcripts", query, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Get returns a single transcript including its full text.
func (t *TranscriptClient) Get(ctx context.Context, id int64) (*Transcript, error) {
	var transcript Transcript
	path := fmt.Sprintf("/transcripts/%d", id)
	if err := t.client.GetJSON(ctx, path, nil, &transcript); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// Delete removes a transcript and its derived minutes.
func (t *TranscriptClient) Delete(ctx context.Context, id int64) error {
	return t.client.Delete(ctx, fmt.Sprintf("/transcripts/%d", id))
}

// Export formats supported by the transcript export endpoint.
const (
	ExportMarkdown = "markdown"
	ExportDocx     = "docx"
	ExportPDF      = "pdf"
	ExportHTML     = "html"
)

// Export downloads a transcript in the given format. The caller must close
// the returned reader.
func (t *TranscriptClient) Export(ctx context.Context, id int64, format string) (io.ReadCloser, string, error) {
	query := url.Values{}
	query.Set("format", format)
	path := fmt.Sprintf("/transcripts/%d/export", id)
	return t.client.GetRaw(ctx, path, query)
}
