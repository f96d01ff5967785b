package textutil

import (
	"math"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"kitten sitting", "kitten", "sitting", 3},
		{"both empty", "", "", 0},
		{"one empty", "abc", "", 3},
		{"other empty", "", "abcd", 4},
		{"identical", "lecture", "lecture", 0},
		{"single substitution", "flaw", "flew", 1},
		{"multibyte runes", "café", "cafe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Levenshtein(tt.a, tt.b); got != tt.want {
				t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityBothEmpty(t *testing.T) {
	if got := Similarity("", ""); got != 1.0 {
		t.Errorf("Similarity(\"\", \"\") = %v, want 1.0", got)
	}
}

func TestSimilarityReflexive(t *testing.T) {
	for _, s := range []string{"a", "Chapter 3: Thermodynamics", "  spaced   out  "} {
		if got := Similarity(s, s); got != 1.0 {
			t.Errorf("Similarity(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"Introduction to Graphs", "introduction to graph"},
		{"", "nonempty"},
		{"abc", "xyz"},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarityBounds(t *testing.T) {
	got := Similarity("abc", "xyz")
	if got != 0 {
		t.Errorf("Similarity(disjoint) = %v, want 0", got)
	}
	got = Similarity("kitten", "sitting")
	want := float64(7-3) / 7
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity(kitten, sitting) = %v, want %v", got, want)
	}
}

func TestSimilarityNormalizes(t *testing.T) {
	if got := Similarity("Hello   WORLD", "hello world"); got != 1.0 {
		t.Errorf("Similarity should ignore case and whitespace runs, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Slide\n\nTwo\tNotes "); got != "slide two notes" {
		t.Errorf("Normalize() = %q", got)
	}
}
