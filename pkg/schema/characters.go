package schema

import (
	"encoding/json"
	"strings"
	"time"
)

// Character is a single roster entry. The extraction model is asked for
// name, role, appearance, and booru_tags; id, source, and confirmed are
// filled in server-side.
type Character struct {
	ID         string  `json:"id,omitempty" jsonschema:"-"`
	Name       string  `json:"name" jsonschema_description:"Character's name or nickname"`
	Role       string  `json:"role" jsonschema_description:"Character's role in the story (e.g., protagonist, rival)"`
	Appearance string  `json:"appearance" jsonschema_description:"Visual description of the character"`
	BooruTags  TagList `json:"booru_tags" jsonschema_description:"Comma-separated visual descriptor tags, at least three per character"`
	Source     string  `json:"source,omitempty" jsonschema:"-"`
	Confirmed  bool    `json:"confirmed,omitempty" jsonschema:"-"`
}

// TagList is a comma-separated tag string. Models sometimes return tags as a
// JSON array instead of a string; both forms decode to the joined string.
type TagList string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = TagList(strings.TrimSpace(s))
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	for i, tag := range list {
		list[i] = strings.TrimSpace(tag)
	}
	*t = TagList(strings.Join(list, ", "))
	return nil
}

func (t TagList) String() string { return string(t) }

// Tags splits the list into trimmed, non-empty tags.
func (t TagList) Tags() []string {
	parts := strings.Split(string(t), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Extraction is the structured-output envelope for the character extraction
// call. The original prompt asked for a bare array; an object root is
// required for strict structured outputs.
type Extraction struct {
	Characters []Character `json:"characters" jsonschema_description:"Main characters extracted from the story summary"`
}

// RosterMetadata tracks bookkeeping for a session's character roster.
// Version starts at 1 and increments on every mutation.
type RosterMetadata struct {
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Confirmed   bool      `json:"confirmed"`
	Version     int       `json:"version"`
}

// RosterExport is the flat JSON shape written by the export operations.
type RosterExport struct {
	SessionID  string         `json:"session_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Characters []Character    `json:"characters"`
	Metadata   RosterMetadata `json:"metadata"`
}
