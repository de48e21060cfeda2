package cmd

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatCommand(t *testing.T) {
	cmd := NewChatCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "chat", cmd.Use)

	names := subcommandNames(cmd)
	for _, want := range []string{"minutes", "ask", "conversations", "messages", "history"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestChatMinutesSessionLoop(t *testing.T) {
	turn := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/minutes_chat/42", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages  []map[string]string `json:"messages"`
			UserInput string              `json:"user_input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		turn++

		w.Header().Set("Content-Type", "application/json")
		switch turn {
		case 1:
			assert.Empty(t, body.Messages)
			assert.Equal(t, "shorten the summary", body.UserInput)
			json.NewEncoder(w).Encode(map[string]any{
				"assistant_message": "Shortened it.",
				"version_id":        12,
				"markdown":          "# Shorter",
			})
		case 2:
			// Second turn carries the first exchange as context.
			require.Len(t, body.Messages, 2)
			assert.Equal(t, "user", body.Messages[0]["role"])
			assert.Equal(t, "assistant", body.Messages[1]["role"])
			json.NewEncoder(w).Encode(map[string]any{
				"assistant_message": "The summary covers three decisions.",
			})
		default:
			t.Errorf("unexpected turn %d", turn)
		}
	})

	deps := newTestDeps(t, mux)
	input := "shorten the summary\nwhat does it cover?\nexit\n"
	out, err := executeWithInput(t, NewChatCommand(deps), input, "minutes", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Shortened it.")
	assert.Contains(t, out, "(saved minutes version 12)")
	assert.Contains(t, out, "three decisions")

	// The session is mirrored locally.
	sessions, err := historyStore().List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(42), sessions[0].TranscriptID)
	assert.Len(t, sessions[0].Entries, 4)
}

func TestChatAsk(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/agent", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "what did we decide?", body["body"])
		assert.Equal(t, "gpt-4o-mini", body["model"])
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"assistant": map[string]string{"body": "You decided to ship."},
		})
	})

	deps := newTestDeps(t, mux)
	out, err := execute(t, NewChatCommand(deps), "ask", "what did we decide?")
	require.NoError(t, err)
	assert.Contains(t, out, "You decided to ship.")
}

func TestChatAskReportsSavedEdit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/agent", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"body":          "Trimmed it down.",
			"editedMinutes": "# Minutes (short)",
			"versionNo":     4,
		})
	})

	deps := newTestDeps(t, mux)
	out, err := execute(t, NewChatCommand(deps), "ask", "shorten the minutes")
	require.NoError(t, err)
	assert.Contains(t, out, "Trimmed it down.")
	assert.Contains(t, out, "# Minutes (short)")
	assert.Contains(t, out, "(saved minutes v4)")
}

func TestChatAskWithMinutes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/minutes_versions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("transcript_id"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 12, "transcript_id": 42, "version_no": 2, "markdown": "# Minutes v2"},
			{"id": 11, "transcript_id": 42, "version_no": 1, "markdown": "# Minutes v1"},
		})
	})
	mux.HandleFunc("/minutes/api/agent", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// The latest version is wrapped as context around the question.
		assert.Equal(t,
			"CONTENT_START\n# Minutes v2\nCONTENT_END\nINSTRUCTION:\nlist the action items",
			body["body"])
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"assistant": map[string]string{"body": "1. Ship the release."},
		})
	})

	deps := newTestDeps(t, mux)
	out, err := execute(t, NewChatCommand(deps), "ask", "list the action items", "--with-minutes", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Ship the release.")
}

func TestChatAskWithMinutesNoVersions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/minutes_versions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	})

	deps := newTestDeps(t, mux)
	_, err := execute(t, NewChatCommand(deps), "ask", "anything", "--with-minutes", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no minutes yet")
}

func TestChatAskEmptyReply(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/minutes/api/agent", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	})

	deps := newTestDeps(t, mux)
	_, err := execute(t, NewChatCommand(deps), "ask", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty reply")
}

func TestChatConversations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "title": "Budget follow-up"},
			{"id": 2, "title": "Sprint retro"},
		})
	})

	deps := newTestDeps(t, mux)
	out, err := execute(t, NewChatCommand(deps), "conversations")
	require.NoError(t, err)
	assert.Contains(t, out, "Budget follow-up")
	assert.Contains(t, out, "Sprint retro")
}

func TestChatMessages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/api/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("conversation_id"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "conversation_id": 7, "role": "user", "content": "hello"},
			{"id": 2, "conversation_id": 7, "role": "assistant", "content": "hi there"},
		})
	})

	deps := newTestDeps(t, mux)
	out, err := execute(t, NewChatCommand(deps), "messages", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "[user] hello")
	assert.Contains(t, out, "[assistant] hi there")
}

func TestChatHistoryEmpty(t *testing.T) {
	deps := newTestDeps(t, http.NewServeMux())
	out, err := execute(t, NewChatCommand(deps), "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded sessions.")
}
