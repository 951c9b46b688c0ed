package lexer

import "fmt"

// TokenKind identifies one lexical class in the blueprint grammars.
type TokenKind int

const (
	// Special tokens
	Unknown TokenKind = iota
	Whitespace

	// Content sigils (mutation operators)
	SigilCreate    // ::
	SigilAppend    // +=
	SigilPrepend   // ^=
	SigilOverwrite // ~=
	SigilSubtract  // -=
	SigilSeed      // << (copy content from elsewhere)

	// Structure
	Arrow       // -> (symlink target)
	PermMarker  // %% (trailing permission marker / meta prefix)
	VarSigil    // $$
	Equals      // =
	TripleQuote // """ or '''
	Selector    // (key=value ...)

	// Directives and templates
	HashAnchor   // @hash(algo:digest)
	Directive    // @if, @for, @macro, ...
	TemplateExpr // {{ ... }}
	JinjaTag     // {% ... %}

	// Workflow dialect
	Assert // ??
	Action // >>

	// Literals
	Str     // "..." or '...'
	Comment // # ... or // ...
	Word    // path segments, identifiers, bare values
)

var kindNames = [...]string{
	Unknown:        "UNKNOWN",
	Whitespace:     "WHITESPACE",
	SigilCreate:    "SIGIL_CREATE",
	SigilAppend:    "SIGIL_APPEND",
	SigilPrepend:   "SIGIL_PREPEND",
	SigilOverwrite: "SIGIL_OVERWRITE",
	SigilSubtract:  "SIGIL_SUBTRACT",
	SigilSeed:      "SIGIL_SEED",
	Arrow:          "ARROW",
	PermMarker:     "PERM_MARKER",
	VarSigil:       "VAR_SIGIL",
	Equals:         "EQUALS",
	TripleQuote:    "TRIPLE_QUOTE",
	Selector:       "SELECTOR",
	HashAnchor:     "HASH_ANCHOR",
	Directive:      "DIRECTIVE",
	TemplateExpr:   "TEMPLATE_EXPR",
	JinjaTag:       "JINJA_TAG",
	Assert:         "ASSERT",
	Action:         "ACTION",
	Str:            "STRING",
	Comment:        "COMMENT",
	Word:           "WORD",
}

func (k TokenKind) String() string {
	if int(k) < len(kindNames) && k >= 0 {
		return kindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// IsMutation reports whether the kind is a content mutation sigil.
func (k TokenKind) IsMutation() bool {
	switch k {
	case SigilCreate, SigilAppend, SigilPrepend, SigilOverwrite, SigilSubtract:
		return true
	}
	return false
}

// Token is one lexical unit of a single source line. Tokens are created and
// consumed within that line's processing and have no cross-line lifetime.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int // byte offset within the line
}

// End returns the byte offset just past the token's text.
func (t Token) End() int { return t.Offset + len(t.Text) }

func (t Token) String() string {
	return fmt.Sprintf("%s(%q@%d)", t.Kind, t.Text, t.Offset)
}

// Dialect selects which grammar table drives tokenization.
type Dialect int

const (
	// DialectForm is the structural dialect: file trees, content, permissions.
	DialectForm Dialect = iota
	// DialectWorkflow adds vows (??) and actions (>>) for task documents.
	DialectWorkflow
)

func (d Dialect) String() string {
	switch d {
	case DialectForm:
		return "form"
	case DialectWorkflow:
		return "workflow"
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

// ParseDialect maps a user-supplied name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "form", "":
		return DialectForm, nil
	case "workflow":
		return DialectWorkflow, nil
	}
	return DialectForm, fmt.Errorf("unknown dialect %q (want form or workflow)", name)
}
