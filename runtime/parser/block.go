package parser

import (
	"strings"
)

// tabWidth is the visual width a tab expands to when measuring indentation.
// Mixed tab/space documents must compare consistently, so depth is always
// measured in visual columns rather than raw characters.
const tabWidth = 4

// VisualIndent measures a line's leading indentation in visual columns.
func VisualIndent(line string) int {
	depth := 0
	for _, r := range line {
		switch r {
		case ' ':
			depth++
		case '\t':
			depth += tabWidth - depth%tabWidth
		default:
			return depth
		}
	}
	return depth
}

// ConsumeBlock gathers the body of a multi-line content block that was
// opened at lines[start]. It returns the collected body lines and the index
// of the first line after the block.
//
// Triple-quote blocks run until a line whose stripped content begins with
// the same quote style and is not itself an assignment line. Indent blocks
// run while a line's visual indentation exceeds openingIndent; blank lines
// inside the block are kept. Relative indentation within the body is
// preserved by stripping only the body's common leading depth.
func ConsumeBlock(lines []string, start int, openingIndent int, style BlockStyle) (body []string, next int) {
	switch style {
	case BlockTripleDouble, BlockTripleSingle:
		return consumeQuoted(lines, start, quoteFor(style))
	default:
		return consumeIndented(lines, start, openingIndent)
	}
}

func quoteFor(style BlockStyle) string {
	if style == BlockTripleSingle {
		return "'''"
	}
	return `"""`
}

func consumeQuoted(lines []string, start int, quote string) ([]string, int) {
	var body []string
	i := start + 1
	for ; i < len(lines); i++ {
		stripped := strings.TrimSpace(lines[i])
		if strings.HasPrefix(stripped, quote) && !isAssignmentLine(stripped) {
			return body, i + 1
		}
		body = append(body, lines[i])
	}
	// Unterminated block: everything to EOF is the body; the caller reports
	// the orphaned-block diagnostic.
	return body, i
}

func consumeIndented(lines []string, start int, openingIndent int) ([]string, int) {
	var raw []string
	i := start + 1
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			// Blank lines belong to the block unless they end the document.
			if j := nextNonBlank(lines, i); j >= 0 && VisualIndent(lines[j]) > openingIndent {
				raw = append(raw, "")
				continue
			}
			break
		}
		if VisualIndent(lines[i]) <= openingIndent {
			break
		}
		raw = append(raw, lines[i])
	}
	return rebase(raw), i
}

func nextNonBlank(lines []string, from int) int {
	for j := from + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) != "" {
			return j
		}
	}
	return -1
}

// rebase strips the common leading visual depth so the block body keeps its
// internal shape but loses the document's nesting offset.
func rebase(raw []string) []string {
	minDepth := -1
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		d := VisualIndent(l)
		if minDepth < 0 || d < minDepth {
			minDepth = d
		}
	}
	if minDepth <= 0 {
		return raw
	}

	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = stripVisual(l, minDepth)
	}
	return out
}

func stripVisual(line string, depth int) string {
	col := 0
	for i, r := range line {
		if col >= depth {
			return line[i:]
		}
		switch r {
		case ' ':
			col++
		case '\t':
			col += tabWidth - col%tabWidth
		default:
			return line[i:]
		}
	}
	return ""
}

// isAssignmentLine reports whether a stripped line carries an assignment
// sigil, which disqualifies it from closing a triple-quote block (it is a
// new content opener of its own).
func isAssignmentLine(stripped string) bool {
	for _, sigil := range assignmentSigils {
		if strings.Contains(stripped, sigil) {
			return true
		}
	}
	return false
}

// jinjaCloser reports whether a raw line is a {% end... %} tag.
func jinjaCloser(raw string) bool {
	stripped := strings.TrimSpace(raw)
	if !strings.HasPrefix(stripped, "{%") {
		return false
	}
	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(stripped, "{%"), "%}"))
	return strings.HasPrefix(inner, "end")
}
