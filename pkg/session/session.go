// Package session holds all per-session state: generation history and the
// character roster. State lives in memory behind a single mutex; the only
// persistence is flat JSON exports.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"comicinsights/pkg/schema"
	"comicinsights/pkg/utils"
)

var ErrNotFound = errors.New("session not found")

// HistoryEntry records one image generation.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	Image     string    `json:"image"`
	Plot      string    `json:"plot"`
}

type Session struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	History   []HistoryEntry `json:"history"`
	Roster    Roster         `json:"roster"`
}

type Roster struct {
	Characters []schema.Character    `json:"characters"`
	Metadata   schema.RosterMetadata `json:"metadata"`
}

// Store is the in-memory session map. It sits behind concurrent HTTP
// handlers, so every access goes through the mutex.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	exportDir string
}

func NewStore(exportDir string) (*Store, error) {
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	return &Store{
		sessions:  make(map[string]*Session),
		exportDir: exportDir,
	}, nil
}

func (s *Store) ExportDir() string { return s.exportDir }

// Create registers a new session and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()
	now := time.Now().UTC()

	s.mu.Lock()
	s.sessions[id] = &Session{
		ID:        id,
		CreatedAt: now,
		Roster: Roster{
			Metadata: schema.RosterMetadata{
				CreatedAt:   now,
				LastUpdated: now,
				Version:     1,
			},
		},
	}
	s.mu.Unlock()

	log.Info("created session", "id", id)
	return id
}

// getOrCreate mirrors the lazy-session behavior of the roster operations:
// touching an unknown session brings it into existence.
func (s *Store) getOrCreate(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:        id,
		CreatedAt: now,
		Roster: Roster{
			Metadata: schema.RosterMetadata{
				CreatedAt:   now,
				LastUpdated: now,
				Version:     1,
			},
		},
	}
	s.sessions[id] = sess
	log.Info("created session", "id", id)
	return sess
}

// AddEntry appends a generation record to the session history.
func (s *Store) AddEntry(id string, entry HistoryEntry) (HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return HistoryEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	entry.ID = ksuid.New().String()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	sess.History = append(sess.History, entry)
	return entry, nil
}

// History returns the generation history for a session, newest last.
func (s *Store) History(id string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]HistoryEntry, len(sess.History))
	copy(out, sess.History)
	return out, nil
}

// Export writes the full session record to the export directory and returns
// the file path.
func (s *Store) Export(id string) (string, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.RUnlock()
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	snapshot := *sess
	snapshot.History = append([]HistoryEntry(nil), sess.History...)
	snapshot.Roster.Characters = append([]schema.Character(nil), sess.Roster.Characters...)
	s.mu.RUnlock()

	path := filepath.Join(s.exportDir, "session_"+utils.SanitizeFilename(id)+".json")
	if err := utils.Save(path, snapshot); err != nil {
		return "", fmt.Errorf("exporting session %s: %w", id, err)
	}
	log.Info("exported session", "id", id, "path", path)
	return path, nil
}
