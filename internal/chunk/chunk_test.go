package chunk

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewRejectsBadOverlap(t *testing.T) {
	if _, err := New(4, 4); err == nil {
		t.Error("New(4, 4) accepted overlap equal to size")
	}
	if _, err := New(4, 5); err == nil {
		t.Error("New(4, 5) accepted overlap larger than size")
	}
	if _, err := New(4, -1); err == nil {
		t.Error("New(4, -1) accepted negative overlap")
	}
	if _, err := New(0, 10); err != nil {
		t.Errorf("New(0, 10) = %v, want nil (splitting disabled)", err)
	}
}

func TestSplitOverlappingWindows(t *testing.T) {
	s, err := New(4, 1)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	got := s.Split("A B C D E F G H")
	want := []string{"A B C D", "D E F G", "G H"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %v, want %v", got, want)
	}
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	s, err := New(400, 60)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	got := s.Split("just a few words")
	if len(got) != 1 || got[0] != "just a few words" {
		t.Errorf("Split() = %v, want single chunk", got)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s, err := New(4, 1)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	if got := s.Split(""); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("   \n\t  "); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitDisabled(t *testing.T) {
	s, err := New(0, 0)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	text := strings.Repeat("word ", 1000)
	got := s.Split(text)
	if len(got) != 1 || got[0] != text {
		t.Errorf("Split() with size 0 = %d chunks, want the input unchanged", len(got))
	}
}

func TestSplitZeroOverlap(t *testing.T) {
	s, err := New(3, 0)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	got := s.Split("a b c d e f g")
	want := []string{"a b c", "d e f", "g"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %v, want %v", got, want)
	}
}

func TestSplitCoversAllTokens(t *testing.T) {
	s, err := New(5, 2)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	var sb strings.Builder
	for i := 0; i < 137; i++ {
		sb.WriteString("tok")
		sb.WriteByte('0' + byte(i%10))
		sb.WriteByte(' ')
	}
	text := sb.String()
	tokens := Tokenize(text)

	chunks := s.Split(text)
	if len(chunks) == 0 {
		t.Fatal("Split() returned no chunks")
	}
	// First chunk starts at the first token, last chunk ends at the last.
	if !strings.HasPrefix(chunks[0], tokens[0]) {
		t.Errorf("first chunk %q does not start with %q", chunks[0], tokens[0])
	}
	if !strings.HasSuffix(chunks[len(chunks)-1], tokens[len(tokens)-1]) {
		t.Errorf("last chunk does not end with %q", tokens[len(tokens)-1])
	}
	// Every chunk respects the window size.
	for i, c := range chunks {
		if n := Count(c); n > 5 {
			t.Errorf("chunk %d has %d tokens, want <= 5", i, n)
		}
	}
	// Consecutive chunks share the overlap.
	for i := 1; i < len(chunks); i++ {
		prev := Tokenize(chunks[i-1])
		cur := Tokenize(chunks[i])
		tail := Join(prev[len(prev)-2:])
		head := Join(cur[:2])
		if tail != head {
			t.Errorf("chunks %d/%d do not overlap: %q vs %q", i-1, i, tail, head)
		}
	}
}

func TestCount(t *testing.T) {
	if got := Count("one two  three\nfour"); got != 4 {
		t.Errorf("Count() = %d, want 4", got)
	}
	if got := Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
}

func TestID(t *testing.T) {
	if got := ID("https://example.com/doc", 3); got != "https://example.com/doc#chunk-3" {
		t.Errorf("ID() = %q", got)
	}
	if got := ID("notes.txt", 0); got != "notes.txt#chunk-0" {
		t.Errorf("ID() = %q", got)
	}
}
