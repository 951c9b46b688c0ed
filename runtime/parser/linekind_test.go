package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/novalym/velm-sub008/runtime/lexer"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		dialect lexer.Dialect
		want    LineKind
	}{
		{"empty", "", lexer.DialectForm, Void},
		{"blank", "    ", lexer.DialectForm, Void},
		{"hash comment", "# note", lexer.DialectForm, Comment},
		{"slash comment", "// note", lexer.DialectForm, Comment},
		{"jinja construct", "{% if debug %}", lexer.DialectForm, JinjaConstruct},
		{"jinja closer", "{% endif %}", lexer.DialectForm, JinjaConstruct},

		// Meta precedence: the specific %% prefixes must win over the
		// generic %% rule.
		{"on-heresy before postrun", "%% on-heresy make clean", lexer.DialectForm, OnHeresy},
		{"on-undo before postrun", "%% on-undo git reset", lexer.DialectForm, OnUndo},
		{"trait def", "%% trait server", lexer.DialectForm, TraitDef},
		{"trait use", "%% use server", lexer.DialectForm, TraitUse},
		{"generic meta is postrun in form", "%% git init", lexer.DialectForm, PostRun},
		{"generic meta is state in workflow", "%% git init", lexer.DialectWorkflow, State},
		{"on-heresy wins in workflow too", "%% on-heresy echo fail", lexer.DialectWorkflow, OnHeresy},

		// Keyword prefixes end at a word boundary; a command whose first word
		// merely starts with "use" or "trait" is still a plain command.
		{"useradd is postrun", "%% useradd deploy", lexer.DialectForm, PostRun},
		{"traitor is postrun", "%% traitor.sh", lexer.DialectForm, PostRun},
		{"on-undoing is postrun", "%% on-undoing cleanup", lexer.DialectForm, PostRun},
		{"bare trait keyword", "%% trait", lexer.DialectForm, TraitDef},

		{"dollar variable", "$$ NAME = velm", lexer.DialectForm, Variable},
		{"let variable", "let port = 80", lexer.DialectForm, Variable},
		{"def variable", "def root = /srv", lexer.DialectForm, Variable},
		{"const variable", "const tier = web", lexer.DialectForm, Variable},
		{"typed declaration", "$$ PORT: int = 8080", lexer.DialectForm, ContractDef},
		{"colon after equals is untyped", "$$ URL = host:8080", lexer.DialectForm, Variable},

		{"directive", "@if env == prod", lexer.DialectForm, Directive},
		{"end directive", "@end", lexer.DialectForm, Directive},

		{"vow in workflow", "?? test -d build", lexer.DialectWorkflow, Vow},
		{"action in workflow", ">> make build", lexer.DialectWorkflow, Action},
		{"vow sigil is structural in form", "?? test -d build", lexer.DialectForm, Form},

		{"structural file", `src/main.go :: "x"`, lexer.DialectForm, Form},
		{"structural dir", "build/", lexer.DialectForm, Form},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.line, tt.dialect); got != tt.want {
				t.Errorf("Classify(%q, %v) = %v, want %v", tt.line, tt.dialect, got, tt.want)
			}
		})
	}
}

func TestIsCommand(t *testing.T) {
	commands := []LineKind{PostRun, Action, Vow, State}
	for _, k := range commands {
		if !k.IsCommand() {
			t.Errorf("%v.IsCommand() = false, want true", k)
		}
	}
	for _, k := range []LineKind{Void, Form, Directive, Variable, OnHeresy, OnUndo} {
		if k.IsCommand() {
			t.Errorf("%v.IsCommand() = true, want false", k)
		}
	}
}

func TestVariableDecl(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"$$ A = 1", "A = 1"},
		{"let b = two", "b = two"},
		{"const c=3", "c=3"},
		{"letter = not a decl", ""},
		{"src/file :: x", ""},
	}
	for _, tt := range tests {
		if got := variableDecl(tt.line); got != tt.want {
			t.Errorf("variableDecl(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestClassifyOrderIsStable(t *testing.T) {
	// The same inputs must classify identically across calls; the rule table
	// is read-only and shared.
	lines := []string{"%% on-heresy x", "$$ A = 1", "@for x in xs", "a/b :: c"}
	first := make([]LineKind, len(lines))
	for i, l := range lines {
		first[i] = Classify(l, lexer.DialectForm)
	}
	second := make([]LineKind, len(lines))
	for i, l := range lines {
		second[i] = Classify(l, lexer.DialectForm)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("classification drifted between runs:\n%s", diff)
	}
}
