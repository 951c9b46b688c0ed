package parser

import (
	"github.com/novalym/velm-sub008/core/plan"
)

// BlockStyle says how a multi-line content block is delimited.
type BlockStyle int

const (
	BlockIndent BlockStyle = iota
	BlockTripleDouble
	BlockTripleSingle
)

// ContentSource carries a structural line's file content: either inline text
// captured from the line itself, or a placeholder for a multi-line block the
// Block Consumer fills in afterwards.
type ContentSource struct {
	Inline  string
	IsBlock bool
	Style   BlockStyle
	Lines   []string // block body, populated by the Block Consumer
}

// Text returns the effective content string.
func (c *ContentSource) Text() string {
	if c == nil {
		return ""
	}
	if c.IsBlock {
		return joinLines(c.Lines)
	}
	return c.Inline
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// LineRecord (the "vessel") is the canonical parsed representation of one
// source line. It is created once by the classifier/deconstructor pair, read
// by the AST weaver, and never mutated afterwards except for Valid flips
// when a diagnostic is attached.
type LineRecord struct {
	Raw    string
	Line   int
	Indent int // visual indentation depth (tabs expanded)
	Kind   LineKind

	// Structural fields (Form lines)
	Path          string
	IsDir         bool
	Content       *ContentSource
	Mutation      *plan.MutationOp
	Permissions   string
	ExpectedHash  *plan.HashAnchor
	SymlinkTarget string
	SeedPath      string
	Selector      map[string]string

	// Directive fields
	Directive    string // "if", "for", "macro", "end", ...
	DirectiveArg string // everything after the directive word

	// Trait fields
	TraitName string
	TraitArgs map[string]string

	// Variable fields (Variable / ContractDef lines); the type signature of
	// a typed declaration rides in DirectiveArg.
	VarName  string
	VarValue string

	// Command fields (PostRun / Action / Vow / State lines)
	CommandText string

	Valid bool
}

// HasContent reports whether the record carries (or will carry) file content.
func (r *LineRecord) HasContent() bool {
	return r.Content != nil || r.SeedPath != ""
}

// OpensBlock reports whether the record expects the Block Consumer to gather
// subsequent lines for it.
func (r *LineRecord) OpensBlock() bool {
	return r.Content != nil && r.Content.IsBlock
}

// IsCloser reports whether the record is a pure scope-closing marker that
// must never be pushed as a new scope (@end* and {% end... %}).
func (r *LineRecord) IsCloser() bool {
	if r.Kind == Directive {
		return len(r.Directive) >= 3 && r.Directive[:3] == "end"
	}
	if r.Kind == JinjaConstruct {
		return jinjaCloser(r.Raw)
	}
	return false
}
