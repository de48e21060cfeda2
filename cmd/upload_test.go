package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "standup.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake audio"), 0644))
	return path
}

func TestNewUploadCommand(t *testing.T) {
	cmd := NewUploadCommand(nil)
	require.NotNil(t, cmd)
	assert.NotNil(t, cmd.Flags().Lookup("wait"))
}

func TestUpload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/files", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "standup.wav", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "RIFF fake audio", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"file_id": "f-1", "task_id": "task-stt"})
	})

	deps := newTestDeps(t, mux)
	out, err := execute(t, NewUploadCommand(deps), writeAudioFixture(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded standup.wav (file f-1, task task-stt)")
}

func TestUploadNoTaskID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"file_id": "f-1"})
	})

	deps := newTestDeps(t, mux)
	_, err := execute(t, NewUploadCommand(deps), writeAudioFixture(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no task id")
}

func TestUploadMissingFile(t *testing.T) {
	deps := newTestDeps(t, http.NewServeMux())
	_, err := execute(t, NewUploadCommand(deps), filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.wav")
}

func TestUploadWaitFollowsPipeline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"file_id": "f-1", "task_id": "task-stt"})
	})
	mux.HandleFunc("/minutes/api/jobs/task-stt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": 1, "task_id": "task-stt", "file_id": "f-1",
			"transcript_id": 42, "status": "DRAFT_READY",
		})
	})
	mux.HandleFunc("/minutes/api/transcripts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			{"id": 42, "file_id": "f-1", "filename": "standup.wav"},
		}})
	})
	mux.HandleFunc("/minutes/api/42/draft", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"task_id": "task-draft"})
	})
	mux.HandleFunc("/minutes/api/jobs/task-draft", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": 2, "task_id": "task-draft", "status": "DRAFT_READY",
		})
	})

	deps := newTestDeps(t, mux)
	out, err := execute(t, NewUploadCommand(deps), writeAudioFixture(t), "--wait")
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded standup.wav")
	assert.Contains(t, out, "Ready: transcript 42 (standup.wav)")
}

func TestUploadWaitReportsFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"file_id": "f-1", "task_id": "task-stt"})
	})
	mux.HandleFunc("/minutes/api/jobs/task-stt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": 1, "task_id": "task-stt", "file_id": "f-1",
			"status": "FAILED", "error": "audio too short",
		})
	})

	deps := newTestDeps(t, mux)
	out, err := execute(t, NewUploadCommand(deps), writeAudioFixture(t), "--wait")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 file(s) failed")
	assert.Contains(t, out, "audio too short")
}
