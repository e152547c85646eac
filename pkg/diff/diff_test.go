package diff

import (
	"strings"
	"testing"
)

func TestWords(t *testing.T) {
	deltas := Words("the quick fox", "the slow fox")

	var inserted, deleted []string
	for _, d := range deltas {
		switch d.Op {
		case Insert:
			inserted = append(inserted, d.Text)
		case Delete:
			deleted = append(deleted, d.Text)
		}
	}
	if strings.Join(deleted, "") != "quick" {
		t.Errorf("deleted = %v, want [quick]", deleted)
	}
	if strings.Join(inserted, "") != "slow" {
		t.Errorf("inserted = %v, want [slow]", inserted)
	}
}

func TestWords_Reconstructs(t *testing.T) {
	a := "Rei storms the castle, alone."
	b := "Rei storms the fortress at dawn, alone."
	deltas := Words(a, b)

	var left, right strings.Builder
	for _, d := range deltas {
		if d.Op != Insert {
			left.WriteString(d.Text)
		}
		if d.Op != Delete {
			right.WriteString(d.Text)
		}
	}
	if left.String() != a {
		t.Errorf("left side does not reconstruct: %q", left.String())
	}
	if right.String() != b {
		t.Errorf("right side does not reconstruct: %q", right.String())
	}
}

func TestChanged(t *testing.T) {
	if Changed(Words("same text", "same text")) {
		t.Error("identical texts should not report a change")
	}
	if !Changed(Words("old text", "new text")) {
		t.Error("word edit should report a change")
	}
	if Changed(Words("spaced  text", "spaced text")) {
		t.Error("whitespace-only edits should not report a change")
	}
}

func TestTokenizeWords(t *testing.T) {
	got := tokenizeWords("it's a well-known fact, okay?")
	want := []string{"it's", " ", "a", " ", "well-known", " ", "fact", ",", " ", "okay", "?"}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}
