package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenizeForm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{
			name:  "create with inline string",
			input: `src/main.go :: "package main"`,
			want: []Token{
				{Kind: Word, Text: "src/main.go", Offset: 0},
				{Kind: SigilCreate, Text: "::", Offset: 12},
				{Kind: Str, Text: `"package main"`, Offset: 15},
			},
		},
		{
			name:  "sigil without surrounding spaces",
			input: `file::x`,
			want: []Token{
				{Kind: Word, Text: "file", Offset: 0},
				{Kind: SigilCreate, Text: "::", Offset: 4},
				{Kind: Word, Text: "x", Offset: 6},
			},
		},
		{
			name:  "append to dashed name",
			input: `my-app.cfg += extra`,
			want: []Token{
				{Kind: Word, Text: "my-app.cfg", Offset: 0},
				{Kind: SigilAppend, Text: "+=", Offset: 11},
				{Kind: Word, Text: "extra", Offset: 14},
			},
		},
		{
			name:  "symlink arrow",
			input: `current -> releases/v2`,
			want: []Token{
				{Kind: Word, Text: "current", Offset: 0},
				{Kind: Arrow, Text: "->", Offset: 8},
				{Kind: Word, Text: "releases/v2", Offset: 11},
			},
		},
		{
			name:  "subtract sigil not eaten by word",
			input: `notes.txt -= old`,
			want: []Token{
				{Kind: Word, Text: "notes.txt", Offset: 0},
				{Kind: SigilSubtract, Text: "-=", Offset: 10},
				{Kind: Word, Text: "old", Offset: 13},
			},
		},
		{
			name:  "seed sigil",
			input: `conf << templates/base`,
			want: []Token{
				{Kind: Word, Text: "conf", Offset: 0},
				{Kind: SigilSeed, Text: "<<", Offset: 5},
				{Kind: Word, Text: "templates/base", Offset: 8},
			},
		},
		{
			name:  "permission marker",
			input: `bin/tool %% 755`,
			want: []Token{
				{Kind: Word, Text: "bin/tool", Offset: 0},
				{Kind: PermMarker, Text: "%%", Offset: 9},
				{Kind: Word, Text: "755", Offset: 12},
			},
		},
		{
			name:  "hash anchor wins over directive",
			input: `@hash(sha256:ab12)`,
			want: []Token{
				{Kind: HashAnchor, Text: "@hash(sha256:ab12)", Offset: 0},
			},
		},
		{
			name:  "directive with condition",
			input: `@if env == prod`,
			want: []Token{
				{Kind: Directive, Text: "@if", Offset: 0},
				{Kind: Word, Text: "env", Offset: 4},
				{Kind: Equals, Text: "=", Offset: 8},
				{Kind: Equals, Text: "=", Offset: 9},
				{Kind: Word, Text: "prod", Offset: 11},
			},
		},
		{
			name:  "variable declaration",
			input: `$$ NAME = velm`,
			want: []Token{
				{Kind: VarSigil, Text: "$$", Offset: 0},
				{Kind: Word, Text: "NAME", Offset: 3},
				{Kind: Equals, Text: "=", Offset: 8},
				{Kind: Word, Text: "velm", Offset: 10},
			},
		},
		{
			name:  "template expression inside path",
			input: `{{name}}.txt :: hi`,
			want: []Token{
				{Kind: TemplateExpr, Text: "{{name}}", Offset: 0},
				{Kind: Word, Text: ".txt", Offset: 8},
				{Kind: SigilCreate, Text: "::", Offset: 13},
				{Kind: Word, Text: "hi", Offset: 16},
			},
		},
		{
			name:  "triple quote opener",
			input: `doc.md :: """`,
			want: []Token{
				{Kind: Word, Text: "doc.md", Offset: 0},
				{Kind: SigilCreate, Text: "::", Offset: 7},
				{Kind: TripleQuote, Text: `"""`, Offset: 10},
			},
		},
		{
			name:  "selector",
			input: `svc.yaml (env=prod)`,
			want: []Token{
				{Kind: Word, Text: "svc.yaml", Offset: 0},
				{Kind: Selector, Text: "(env=prod)", Offset: 9},
			},
		},
		{
			name:  "trailing comment",
			input: `app/ # layout root`,
			want: []Token{
				{Kind: Word, Text: "app/", Offset: 0},
				{Kind: Comment, Text: "# layout root", Offset: 5},
			},
		},
		{
			name:  "unknown runes are dropped",
			input: "├── file.txt",
			want: []Token{
				{Kind: Word, Text: "file.txt", Offset: 10},
			},
		},
		{
			name:  "empty line",
			input: "",
			want:  []Token{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input, DialectForm)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenizeWorkflow(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{
			name:  "vow sigil",
			input: `?? test -x bin/tool`,
			want: []Token{
				{Kind: Assert, Text: "??", Offset: 0},
				{Kind: Word, Text: "test", Offset: 3},
				{Kind: Word, Text: "-x", Offset: 8},
				{Kind: Word, Text: "bin/tool", Offset: 11},
			},
		},
		{
			name:  "action sigil",
			input: `>> make build`,
			want: []Token{
				{Kind: Action, Text: ">>", Offset: 0},
				{Kind: Word, Text: "make", Offset: 3},
				{Kind: Word, Text: "build", Offset: 8},
			},
		},
		{
			name:  "form sigils still work",
			input: `out.txt :: done`,
			want: []Token{
				{Kind: Word, Text: "out.txt", Offset: 0},
				{Kind: SigilCreate, Text: "::", Offset: 8},
				{Kind: Word, Text: "done", Offset: 11},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input, DialectWorkflow)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	if d, err := ParseDialect("workflow"); err != nil || d != DialectWorkflow {
		t.Errorf("ParseDialect(workflow) = %v, %v", d, err)
	}
	if d, err := ParseDialect(""); err != nil || d != DialectForm {
		t.Errorf("ParseDialect(empty) = %v, %v", d, err)
	}
	if _, err := ParseDialect("prose"); err == nil {
		t.Error("ParseDialect(prose) should fail")
	}
}
