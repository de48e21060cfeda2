package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: LevelDebug, JSONFormat: true, Output: &buf})

	log.Info("job completed", F("job_id", "abc-123"), F("attempts", 4))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "job completed", entry["message"])
	assert.Equal(t, "abc-123", entry["job_id"])
	assert.Equal(t, float64(4), entry["attempts"])
	assert.Equal(t, "info", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: LevelWarn, JSONFormat: true, Output: &buf})

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "visible")
}

func TestWithAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: LevelDebug, JSONFormat: true, Output: &buf})

	scoped := log.With(F("transcript_id", int64(42)))
	scoped.Info("polling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(42), entry["transcript_id"])
}

func TestErrAndDurationFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: LevelDebug, JSONFormat: true, Output: &buf})

	log.Error("tick failed", Err(errors.New("connection refused")), F("elapsed", 3*time.Second))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connection refused", entry["error"])
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, parseLevel("bogus"), parseLevel(LevelInfo))
}

func TestNopLoggerIsSilent(t *testing.T) {
	log := NewNopLogger()
	// Must not panic and must chain.
	log.With(F("k", "v")).Info("ignored")
}
