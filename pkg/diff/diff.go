// Package diff computes word-level deltas between summary revisions so the
// UI can highlight what a refinement changed.
package diff

import (
	"unicode"

	"github.com/aryann/difflib"
)

type Op int

const (
	Equal Op = iota
	Insert
	Delete
)

type WordDelta struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Words diffs two texts at word granularity.
func Words(a, b string) []WordDelta {
	recs := difflib.Diff(tokenizeWords(a), tokenizeWords(b))
	out := make([]WordDelta, 0, len(recs))
	for _, r := range recs {
		switch r.Delta {
		case difflib.Common:
			out = append(out, WordDelta{Op: Equal, Text: r.Payload})
		case difflib.LeftOnly:
			out = append(out, WordDelta{Op: Delete, Text: r.Payload})
		case difflib.RightOnly:
			out = append(out, WordDelta{Op: Insert, Text: r.Payload})
		}
	}
	return out
}

// Changed reports whether any delta is a non-whitespace edit.
func Changed(deltas []WordDelta) bool {
	for _, d := range deltas {
		if d.Op == Equal {
			continue
		}
		for _, r := range d.Text {
			if !unicode.IsSpace(r) {
				return true
			}
		}
	}
	return false
}

// tokenizeWords splits text into runs of word characters, whitespace, and
// punctuation, preserving every byte across the three classes.
func tokenizeWords(s string) []string {
	var out []string
	var cur []rune
	kind := -1 // 0=space, 1=word, 2=punct
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, string(cur))
		cur = cur[:0]
	}
	for _, r := range s {
		k := 2
		switch {
		case unicode.IsSpace(r):
			k = 0
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '-' || r == '\'':
			k = 1
		}
		if kind == -1 {
			kind = k
		}
		if k != kind {
			flush()
			kind = k
		}
		cur = append(cur, r)
	}
	flush()
	return out
}
