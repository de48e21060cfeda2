package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesClient_Upload(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "standup.mp3", header.Filename)

		_, _ = w.Write([]byte(`{"file_id":"f-abc","task_id":"t-xyz"}`))
	}))

	result, err := NewFilesClient(c).Upload(context.Background(), "/data/standup.mp3", strings.NewReader("mp3"), nil)
	require.NoError(t, err)
	assert.Equal(t, "f-abc", result.FileID)
	assert.Equal(t, "t-xyz", result.TaskID)
}

func TestFilesClient_UploadJobIDAlias(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"file_id":"f-abc","job_id":"legacy-task"}`))
	}))

	result, err := NewFilesClient(c).Upload(context.Background(), "a.wav", strings.NewReader("wav"), nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy-task", result.TaskID)
}

func TestFilesClient_UploadProgressWrap(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"file_id":"f","task_id":"t"}`))
	}))

	var wrapped bool
	wrap := func(r io.Reader) io.Reader {
		wrapped = true
		return r
	}

	_, err := NewFilesClient(c).Upload(context.Background(), "a.wav", strings.NewReader("wav"), wrap)
	require.NoError(t, err)
	assert.True(t, wrapped)
}

func TestHealthClient_Check(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))

		health := NewHealthClient(c, "minutes").Check(context.Background())
		assert.True(t, health.Healthy)
		assert.Equal(t, "minutes", health.Name)
		assert.Equal(t, "ok", health.Status)
	})

	t.Run("degraded status", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
		}))

		health := NewHealthClient(c, "minutes").Check(context.Background())
		assert.False(t, health.Healthy)
		assert.Equal(t, "degraded", health.Status)
	})

	t.Run("500 is unhealthy, not an error return", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}))

		health := NewHealthClient(c, "chat").Check(context.Background())
		assert.False(t, health.Healthy)
		assert.Error(t, health.Err)
	})
}

func TestTranscriptClient_ListAndGet(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transcripts":
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			assert.Equal(t, "desc", r.URL.Query().Get("order"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":2,"file_id":"f-2","filename":"retro.wav","created_at":"2026-02-02T10:00:00Z"},
				{"id":1,"file_id":"f-1","filename":"standup.wav","created_at":"2026-02-01T10:00:00Z"}
			]}`))
		case "/transcripts/2":
			_, _ = w.Write([]byte(`{"id":2,"file_id":"f-2","filename":"retro.wav","text":"full text"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	tc := NewTranscriptClient(c)

	items, err := tc.List(context.Background(), 100, OrderDesc)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "retro.wav", items[0].Filename)

	transcript, err := tc.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "full text", transcript.Text)
}

func TestTranscriptClient_Delete(t *testing.T) {
	var deleted bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/transcripts/7", r.URL.Path)
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, NewTranscriptClient(c).Delete(context.Background(), 7))
	assert.True(t, deleted)
}
