// Package parser classifies raw blueprint lines and deconstructs them into
// LineRecords, the canonical parsed representation one stage above tokens.
package parser

import (
	"fmt"
	"strings"

	"github.com/novalym/velm-sub008/runtime/lexer"
)

// LineKind is the coarse classification assigned to a line before deep
// tokenization is attempted.
type LineKind int

const (
	Void LineKind = iota
	Comment
	Variable
	ContractDef
	Directive
	Form
	Vow
	Action
	State
	TraitDef
	TraitUse
	OnHeresy
	OnUndo
	JinjaConstruct
	PostRun
)

var lineKindNames = [...]string{
	Void:           "Void",
	Comment:        "Comment",
	Variable:       "Variable",
	ContractDef:    "ContractDef",
	Directive:      "Directive",
	Form:           "Form",
	Vow:            "Vow",
	Action:         "Action",
	State:          "State",
	TraitDef:       "TraitDef",
	TraitUse:       "TraitUse",
	OnHeresy:       "OnHeresy",
	OnUndo:         "OnUndo",
	JinjaConstruct: "JinjaConstruct",
	PostRun:        "PostRun",
}

func (k LineKind) String() string {
	if int(k) < len(lineKindNames) && k >= 0 {
		return lineKindNames[k]
	}
	return fmt.Sprintf("LineKind(%d)", int(k))
}

// IsCommand reports whether lines of this kind contribute to the plan's
// command list rather than its item list.
func (k LineKind) IsCommand() bool {
	switch k {
	case PostRun, Action, Vow, State:
		return true
	}
	return false
}

// classifierRule pairs a predicate with the kind it assigns. The rules are
// evaluated top to bottom and the first match wins, so order is semantically
// load-bearing: "%% on-heresy" must be seen before the generic "%%" rule,
// and the generic "%%" rule before bare-assignment detection.
type classifierRule struct {
	match func(trimmed string, d lexer.Dialect) bool
	kind  func(trimmed string, d lexer.Dialect) LineKind
}

func prefixRule(prefix string, kind LineKind) classifierRule {
	return classifierRule{
		match: func(s string, _ lexer.Dialect) bool { return strings.HasPrefix(s, prefix) },
		kind:  func(string, lexer.Dialect) LineKind { return kind },
	}
}

// metaRule matches a "%% word" prefix only at a word boundary, so a generic
// command whose first word merely extends the keyword ("%% useradd deploy")
// stays a post-run line.
func metaRule(prefix string, kind LineKind) classifierRule {
	return classifierRule{
		match: func(s string, _ lexer.Dialect) bool {
			return s == prefix || strings.HasPrefix(s, prefix+" ")
		},
		kind: func(string, lexer.Dialect) LineKind { return kind },
	}
}

var classifierRules = []classifierRule{
	{
		match: func(s string, _ lexer.Dialect) bool { return s == "" },
		kind:  func(string, lexer.Dialect) LineKind { return Void },
	},
	{
		match: func(s string, _ lexer.Dialect) bool {
			return strings.HasPrefix(s, "#") || strings.HasPrefix(s, "//")
		},
		kind: func(string, lexer.Dialect) LineKind { return Comment },
	},
	prefixRule("{%", JinjaConstruct),
	metaRule("%% on-heresy", OnHeresy),
	metaRule("%% on-undo", OnUndo),
	metaRule("%% trait", TraitDef),
	metaRule("%% use", TraitUse),
	{
		match: func(s string, _ lexer.Dialect) bool { return strings.HasPrefix(s, "%%") },
		kind: func(_ string, d lexer.Dialect) LineKind {
			if d == lexer.DialectWorkflow {
				return State
			}
			return PostRun
		},
	},
	{
		match: func(s string, _ lexer.Dialect) bool { return variableDecl(s) != "" },
		kind: func(s string, _ lexer.Dialect) LineKind {
			if typedDecl(s) {
				return ContractDef
			}
			return Variable
		},
	},
	{
		match: func(s string, _ lexer.Dialect) bool { return strings.HasPrefix(s, "@") },
		kind:  func(string, lexer.Dialect) LineKind { return Directive },
	},
	{
		match: func(s string, d lexer.Dialect) bool {
			return d == lexer.DialectWorkflow && strings.HasPrefix(s, "??")
		},
		kind: func(string, lexer.Dialect) LineKind { return Vow },
	},
	{
		match: func(s string, d lexer.Dialect) bool {
			return d == lexer.DialectWorkflow && strings.HasPrefix(s, ">>")
		},
		kind: func(string, lexer.Dialect) LineKind { return Action },
	},
}

// Classify assigns a coarse LineKind by a fast, ordered triage of the line's
// leading characters. Anything no rule claims is a generic structural line.
func Classify(line string, d lexer.Dialect) LineKind {
	trimmed := strings.TrimSpace(line)
	for _, r := range classifierRules {
		if r.match(trimmed, d) {
			return r.kind(trimmed, d)
		}
	}
	return Form
}

// variableDecl returns the declaration body (after the keyword/sigil) when
// the line is a variable definition, or "" otherwise.
func variableDecl(trimmed string) string {
	for _, prefix := range []string{"$$", "let ", "def ", "const "} {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
	}
	return ""
}

// typedDecl reports whether a variable declaration carries a type signature
// ("$$ name: type = value"), which routes it through contract validation.
func typedDecl(trimmed string) bool {
	body := variableDecl(trimmed)
	eq := strings.Index(body, "=")
	colon := strings.Index(body, ":")
	if colon < 0 {
		return false
	}
	return eq < 0 || colon < eq
}
