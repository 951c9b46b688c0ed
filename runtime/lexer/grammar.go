package lexer

import "regexp"

// grammarRule pairs a token kind with its anchored pattern. Rules are tried
// in table order at each position; the first match wins, so earlier rules
// shadow later ones (":: " must be tried before the Word rule, "@hash("
// before the generic directive rule, and so on).
type grammarRule struct {
	kind    TokenKind
	pattern *regexp.Regexp
}

func rule(kind TokenKind, expr string) grammarRule {
	return grammarRule{kind: kind, pattern: regexp.MustCompile(`^(?:` + expr + `)`)}
}

// Word deliberately excludes sigil characters so that "file::x" splits at the
// sigil. A dash is only consumed when followed by another word character,
// which keeps "-=" and "->" out of paths like "my-app".
const wordExpr = `(?:[A-Za-z0-9._*/\\!]|-[A-Za-z0-9._*/\\])+`

// formGrammar is the structural dialect's ordered token table.
var formGrammar = []grammarRule{
	rule(Whitespace, `[ \t]+`),
	rule(Comment, `(?:#|//).*`),
	rule(TripleQuote, `"""|'''`),
	rule(HashAnchor, `@hash\([^)]*\)`),
	rule(Directive, `@[A-Za-z][A-Za-z0-9_-]*`),
	rule(SigilCreate, `::`),
	rule(SigilAppend, `\+=`),
	rule(SigilPrepend, `\^=`),
	rule(SigilOverwrite, `~=`),
	rule(SigilSubtract, `-=`),
	rule(SigilSeed, `<<`),
	rule(Arrow, `->`),
	rule(PermMarker, `%%`),
	rule(VarSigil, `\$\$`),
	rule(TemplateExpr, `\{\{[^}]*\}\}`),
	rule(JinjaTag, `\{%[^%]*%\}`),
	rule(Str, `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`),
	rule(Selector, `\([^()]*\)`),
	rule(Equals, `=`),
	rule(Word, wordExpr),
}

// workflowGrammar extends the form table with vow and action sigils. The
// extra rules sit ahead of the shared tail so "??" and ">>" are claimed
// before anything else can touch them.
var workflowGrammar = append([]grammarRule{
	rule(Whitespace, `[ \t]+`),
	rule(Comment, `(?:#|//).*`),
	rule(Assert, `\?\?`),
	rule(Action, `>>`),
}, formGrammar[2:]...)

// grammarFor returns the ordered rule table for a dialect. Tables are
// compiled once at package init and are read-only afterwards, so they may be
// shared freely across concurrent lexer calls.
func grammarFor(d Dialect) []grammarRule {
	if d == DialectWorkflow {
		return workflowGrammar
	}
	return formGrammar
}
