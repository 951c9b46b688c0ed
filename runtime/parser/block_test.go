package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVisualIndent(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"", 0},
		{"x", 0},
		{"    x", 4},
		{"\tx", 4},
		{"\t\tx", 8},
		{"  \tx", 4}, // tab snaps to the next stop
		{"\t  x", 6},
		{"        ", 8},
	}
	for _, tt := range tests {
		if got := VisualIndent(tt.line); got != tt.want {
			t.Errorf("VisualIndent(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestConsumeBlockIndented(t *testing.T) {
	lines := []string{
		"readme.md ::",
		"    # Title",
		"        indented code",
		"",
		"    closing paragraph",
		"next.txt :: x",
	}
	body, next := ConsumeBlock(lines, 0, 0, BlockIndent)

	wantBody := []string{
		"# Title",
		"    indented code",
		"",
		"closing paragraph",
	}
	if diff := cmp.Diff(wantBody, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if next != 5 {
		t.Errorf("next = %d, want 5", next)
	}
}

func TestConsumeBlockIndentedStopsAtDedent(t *testing.T) {
	lines := []string{
		"    child.txt ::",
		"        content",
		"    sibling.txt :: x",
	}
	body, next := ConsumeBlock(lines, 0, 4, BlockIndent)
	if diff := cmp.Diff([]string{"content"}, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if next != 2 {
		t.Errorf("next = %d, want 2", next)
	}
}

func TestConsumeBlockIndentedTrailingBlank(t *testing.T) {
	// A blank line followed by a dedented line ends the block; the blank does
	// not belong to the body.
	lines := []string{
		"doc ::",
		"    body",
		"",
		"other :: x",
	}
	body, next := ConsumeBlock(lines, 0, 0, BlockIndent)
	if diff := cmp.Diff([]string{"body"}, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if next != 2 {
		t.Errorf("next = %d, want 2", next)
	}
}

func TestConsumeBlockTripleQuoted(t *testing.T) {
	lines := []string{
		`doc.md :: """`,
		"line one",
		"",
		"  keeps raw indentation",
		`"""`,
		"after.txt :: x",
	}
	body, next := ConsumeBlock(lines, 0, 0, BlockTripleDouble)

	wantBody := []string{
		"line one",
		"",
		"  keeps raw indentation",
	}
	if diff := cmp.Diff(wantBody, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if next != 5 {
		t.Errorf("next = %d, want 5", next)
	}
}

func TestConsumeBlockTripleQuotedSkipsAssignmentCloser(t *testing.T) {
	// A line that carries an assignment sigil cannot terminate the block even
	// though it starts with the quote style.
	lines := []string{
		`doc.md :: """`,
		`"""inner.txt"" :: not a closer`,
		`"""`,
	}
	body, next := ConsumeBlock(lines, 0, 0, BlockTripleDouble)
	if len(body) != 1 {
		t.Fatalf("body = %v, want one line", body)
	}
	if next != 3 {
		t.Errorf("next = %d, want 3", next)
	}
}

func TestConsumeBlockUnterminated(t *testing.T) {
	lines := []string{
		`doc.md :: """`,
		"runs to",
		"the end",
	}
	body, next := ConsumeBlock(lines, 0, 0, BlockTripleDouble)
	if diff := cmp.Diff([]string{"runs to", "the end"}, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if next != 3 {
		t.Errorf("next = %d, want 3", next)
	}
}
