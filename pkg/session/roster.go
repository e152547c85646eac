package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"

	"comicinsights/pkg/schema"
	"comicinsights/pkg/utils"
)

// CharacterUpdate carries partial edits; nil fields are left untouched.
type CharacterUpdate struct {
	Name       *string         `json:"name,omitempty"`
	Role       *string         `json:"role,omitempty"`
	Appearance *string         `json:"appearance,omitempty"`
	BooruTags  *schema.TagList `json:"booru_tags,omitempty"`
}

// SetCharacters replaces the roster for a session.
func (s *Store) SetCharacters(id string, characters []schema.Character) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	for i := range characters {
		if characters[i].ID == "" {
			characters[i].ID = ksuid.New().String()
		}
	}
	sess.Roster.Characters = characters
	s.touchRoster(sess)
	log.Info("set characters", "session", id, "count", len(characters))
}

// Characters returns a copy of the roster for a session.
func (s *Store) Characters(id string) []schema.Character {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	out := make([]schema.Character, len(sess.Roster.Characters))
	copy(out, sess.Roster.Characters)
	return out
}

// AddCharacter validates, assigns an ID, and appends a character.
func (s *Store) AddCharacter(id string, raw schema.Character) (string, error) {
	c, ok := NormalizeCharacter(raw)
	if !ok {
		return "", fmt.Errorf("invalid character %q: name, role, appearance, and booru_tags are required", raw.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	sess.Roster.Characters = append(sess.Roster.Characters, c)
	s.touchRoster(sess)
	log.Info("added character", "session", id, "name", c.Name, "id", c.ID)
	return c.ID, nil
}

// UpdateCharacter applies partial edits to a character by ID.
func (s *Store) UpdateCharacter(id, characterID string, update CharacterUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	for i := range sess.Roster.Characters {
		c := &sess.Roster.Characters[i]
		if c.ID != characterID {
			continue
		}
		if update.Name != nil {
			c.Name = strings.TrimSpace(*update.Name)
		}
		if update.Role != nil {
			c.Role = strings.TrimSpace(*update.Role)
		}
		if update.Appearance != nil {
			c.Appearance = strings.TrimSpace(*update.Appearance)
		}
		if update.BooruTags != nil {
			c.BooruTags = *update.BooruTags
		}
		s.touchRoster(sess)
		log.Info("updated character", "session", id, "name", c.Name)
		return nil
	}
	return fmt.Errorf("character %s not found in session %s", characterID, id)
}

// DeleteCharacter removes a character by ID. Deleting an unknown ID is not
// an error, matching the replace-list semantics of the roster.
func (s *Store) DeleteCharacter(id, characterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	kept := sess.Roster.Characters[:0]
	for _, c := range sess.Roster.Characters {
		if c.ID != characterID {
			kept = append(kept, c)
		}
	}
	sess.Roster.Characters = kept
	s.touchRoster(sess)
	log.Info("deleted character", "session", id, "id", characterID)
}

// Confirm marks the roster as finalized. The flag is one-way; enforcement is
// a boolean check by callers.
func (s *Store) Confirm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	sess.Roster.Metadata.Confirmed = true
	sess.Roster.Metadata.LastUpdated = time.Now().UTC()
	log.Info("confirmed roster", "session", id)
}

// ResetConfirmation clears the confirmed flag. Test hook.
func (s *Store) ResetConfirmation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	sess.Roster.Metadata.Confirmed = false
	sess.Roster.Metadata.LastUpdated = time.Now().UTC()
}

func (s *Store) IsConfirmed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(id).Roster.Metadata.Confirmed
}

// RosterVersion reports the current roster version counter.
func (s *Store) RosterVersion(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(id).Roster.Metadata.Version
}

// ExportRoster snapshots the roster with metadata for export.
func (s *Store) ExportRoster(id string) schema.RosterExport {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(id)
	characters := make([]schema.Character, len(sess.Roster.Characters))
	copy(characters, sess.Roster.Characters)
	return schema.RosterExport{
		SessionID:  id,
		Timestamp:  time.Now().UTC(),
		Characters: characters,
		Metadata:   sess.Roster.Metadata,
	}
}

// SaveRoster writes the roster export to a JSON file.
func (s *Store) SaveRoster(id, path string) error {
	export := s.ExportRoster(id)
	if err := utils.Save(path, export); err != nil {
		return fmt.Errorf("saving roster for session %s: %w", id, err)
	}
	log.Info("saved roster", "session", id, "path", path)
	return nil
}

// touchRoster bumps the version and last-updated stamp. Callers hold the lock.
func (s *Store) touchRoster(sess *Session) {
	sess.Roster.Metadata.LastUpdated = time.Now().UTC()
	sess.Roster.Metadata.Version++
}

// NormalizeCharacter validates required fields and fills defaults. Invalid
// characters are rejected rather than repaired.
func NormalizeCharacter(raw schema.Character) (schema.Character, bool) {
	raw.Name = strings.TrimSpace(raw.Name)
	raw.Role = strings.TrimSpace(raw.Role)
	raw.Appearance = strings.TrimSpace(raw.Appearance)
	raw.BooruTags = schema.TagList(strings.TrimSpace(raw.BooruTags.String()))

	if raw.Name == "" || raw.Role == "" || raw.Appearance == "" || raw.BooruTags == "" {
		return schema.Character{}, false
	}
	if raw.ID == "" {
		raw.ID = ksuid.New().String()
	}
	if raw.Source == "" {
		raw.Source = "llm"
	}
	return raw, true
}

// NormalizeCharacters filters a raw list down to valid entries, logging each
// rejection.
func NormalizeCharacters(raw []schema.Character) []schema.Character {
	out := make([]schema.Character, 0, len(raw))
	for _, c := range raw {
		norm, ok := NormalizeCharacter(c)
		if !ok {
			log.Warn("rejected invalid character", "name", c.Name)
			continue
		}
		out = append(out, norm)
	}
	return out
}
