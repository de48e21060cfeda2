// Package history keeps a local mirror of chat transcripts under
// ~/.nenavi/history/ so interactive sessions can be reviewed or resumed
// without the backend. One JSON file per session, named by session id.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const historyDirName = "history"

// Entry is one message of a recorded session.
type Entry struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is a recorded chat session.
type Session struct {
	ID           string    `json:"id"`
	TranscriptID int64     `json:"transcript_id,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	Entries      []Entry   `json:"entries"`
}

// Store reads and writes session files.
type Store struct {
	dir string
}

// NewStore creates a store rooted at baseDir/history.
func NewStore(baseDir string) *Store {
	return &Store{dir: filepath.Join(baseDir, historyDirName)}
}

// NewSession creates an empty session with a fresh id.
func NewSession(transcriptID int64) *Session {
	return &Session{
		ID:           uuid.NewString(),
		TranscriptID: transcriptID,
		StartedAt:    time.Now().UTC(),
	}
}

// Append records one message in the session.
func (s *Session) Append(role, content string) {
	s.Entries = append(s.Entries, Entry{
		Role:    role,
		Content: content,
		At:      time.Now().UTC(),
	})
}

// Save writes the session to disk, creating the history directory on first
// use.
func (st *Store) Save(session *Session) error {
	if err := os.MkdirAll(st.dir, 0700); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	path := filepath.Join(st.dir, session.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

// Load reads one session by id.
func (st *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(st.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", id, err)
	}
	return &session, nil
}

// List returns all stored sessions, newest first.
func (st *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	sessions := make([]*Session, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		session, err := st.Load(id)
		if err != nil {
			// Skip unreadable files rather than failing the whole listing.
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, k int) bool {
		return sessions[i].StartedAt.After(sessions[k].StartedAt)
	})
	return sessions, nil
}

// Delete removes one session file.
func (st *Store) Delete(id string) error {
	if err := os.Remove(filepath.Join(st.dir, id+".json")); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("removing session %s: %w", id, err)
	}
	return nil
}
