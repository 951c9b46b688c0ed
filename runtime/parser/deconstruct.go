package parser

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/novalym/velm-sub008/core/diag"
	"github.com/novalym/velm-sub008/core/plan"
	"github.com/novalym/velm-sub008/runtime/lexer"
)

// assignmentSigils in textual form, used by the triple-quote close check and
// the deconstructor's defensive fallback scan.
var assignmentSigils = []string{"::", "+=", "^=", "~=", "-=", "<<"}

var sigilOps = map[string]plan.MutationOp{
	"::": plan.Create,
	"+=": plan.Append,
	"^=": plan.Prepend,
	"~=": plan.Overwrite,
	"-=": plan.Subtract,
}

// permAliases maps named permission shorthands to octal modes.
var permAliases = map[string]string{
	"executable": "0755",
	"readonly":   "0444",
	"secret":     "0600",
	"public":     "0644",
	"private":    "0640",
}

var octalPerm = regexp.MustCompile(`^[0-7]{3,4}$`)

// hashDigestLen maps supported anchor algorithms to their hex digest length.
var hashDigestLen = map[string]int{
	"sha256":   sha256.Size * 2,
	"sha512":   sha512.Size * 2,
	"blake2b":  blake2b.Size256 * 2,
	"sha3-256": sha3.New256().Size() * 2,
}

var hexDigest = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// DeconstructLine classifies a raw line and fills a LineRecord for it. This
// is the single entry point the orchestrator drives the scan with.
func DeconstructLine(raw string, lineNo int, d lexer.Dialect) (*LineRecord, []diag.Heresy) {
	kind := Classify(raw, d)
	rec := &LineRecord{
		Raw:    raw,
		Line:   lineNo,
		Indent: VisualIndent(raw),
		Kind:   kind,
		Valid:  true,
	}
	trimmed := strings.TrimSpace(raw)

	switch kind {
	case Void, Comment, JinjaConstruct:
		return rec, nil

	case Variable, ContractDef:
		return rec, deconstructVariable(rec, trimmed)

	case Directive:
		rec.Directive, rec.DirectiveArg = ParseDirective(trimmed)
		return rec, nil

	case TraitDef, TraitUse:
		return rec, deconstructTrait(rec, trimmed)

	case OnHeresy, OnUndo:
		prefix := "%% on-heresy"
		if kind == OnUndo {
			prefix = "%% on-undo"
		}
		rec.CommandText = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		return rec, nil

	case PostRun, State:
		rec.CommandText = strings.TrimSpace(strings.TrimPrefix(trimmed, "%%"))
		return rec, nil

	case Vow:
		rec.CommandText = strings.TrimSpace(strings.TrimPrefix(trimmed, "??"))
		return rec, nil

	case Action:
		rec.CommandText = strings.TrimSpace(strings.TrimPrefix(trimmed, ">>"))
		return rec, nil
	}

	tokens := lexer.Tokenize(raw, d)
	return Deconstruct(tokens, rec)
}

// Deconstruct walks a structurally-classified line's token stream and fills
// the record: path, mutation operator, content, permissions, symlink target,
// integrity anchor, semantic selector. Exposed separately from
// DeconstructLine so the textual fallback can be exercised against a token
// stream with simulated grammar gaps.
func Deconstruct(tokens []lexer.Token, rec *LineRecord) (*LineRecord, []diag.Heresy) {
	var heresies []diag.Heresy
	report := func(key string, sev diag.Severity, details, suggestion string) {
		heresies = append(heresies, diag.Heresy{
			Key:        key,
			Severity:   sev,
			Line:       rec.Line,
			LineText:   rec.Raw,
			Details:    details,
			Suggestion: suggestion,
		})
		if sev != diag.Info {
			rec.Valid = false
		}
	}

	// Phase 1: greedy path accumulation until a barrier token.
	i := 0
	pathStart, pathEnd := -1, -1
	for i < len(tokens) {
		t := tokens[i]
		if !isPathBearing(t.Kind) {
			break
		}
		if pathStart < 0 {
			pathStart = t.Offset
		}
		pathEnd = t.End()
		i++
	}
	if pathStart >= 0 {
		rawPath := rec.Raw[pathStart:pathEnd]
		path, isDir, ok := sanitizePath(rawPath)
		if !ok {
			report("degenerate-path", diag.Warning,
				fmt.Sprintf("path %q reduces to nothing after sanitization", rawPath), "")
		}
		rec.Path = path
		rec.IsDir = isDir
	}

	// Phase 2: barrier-token dispatch.
	for i < len(tokens) {
		t := tokens[i]
		switch {
		case t.Kind.IsMutation():
			op := sigilOps[t.Text]
			rec.Mutation = &op
			i = consumeContent(rec, tokens, i+1)

		case t.Kind == lexer.SigilSeed:
			i = consumeSeed(rec, tokens, i+1, report)

		case t.Kind == lexer.Arrow:
			i = consumeSymlink(rec, tokens, i+1, report)

		case t.Kind == lexer.HashAnchor:
			parseHashAnchor(rec, t.Text, report)
			i++

		case t.Kind == lexer.Selector:
			rec.Selector = parseSelector(t.Text)
			i++

		case t.Kind == lexer.PermMarker:
			i = consumePermission(rec, tokens, i+1, report)

		case t.Kind == lexer.Comment:
			i = len(tokens)

		default:
			// Stray token after the path; skip it rather than abort the line.
			i++
		}
	}

	applyTextualFallback(rec, tokens)
	return rec, heresies
}

// isPathBearing reports whether a token kind may contribute to the path
// accumulation phase. Quoted strings qualify so that paths with spaces can
// be written as "my file.txt".
func isPathBearing(k lexer.TokenKind) bool {
	switch k {
	case lexer.Word, lexer.TemplateExpr, lexer.Str:
		return true
	}
	return false
}

// consumeContent handles everything after a mutation sigil: a triple-quote
// opener marks a block placeholder, a quoted string is captured inline with
// escape normalization, bare text runs to the next barrier, and nothing at
// all opens an indentation-delimited block.
func consumeContent(rec *LineRecord, tokens []lexer.Token, i int) int {
	if i >= len(tokens) || tokens[i].Kind == lexer.Comment {
		rec.Content = &ContentSource{IsBlock: true, Style: BlockIndent}
		return i
	}

	t := tokens[i]
	switch t.Kind {
	case lexer.TripleQuote:
		style := BlockTripleDouble
		if t.Text == "'''" {
			style = BlockTripleSingle
		}
		rec.Content = &ContentSource{IsBlock: true, Style: style}
		return i + 1

	case lexer.Str:
		rec.Content = &ContentSource{Inline: unquote(t.Text)}
		return i + 1
	}

	// Bare inline content: everything up to the next trailing barrier.
	start := t.Offset
	end := t.End()
	for i < len(tokens) && !isTrailingBarrier(tokens[i].Kind) {
		end = tokens[i].End()
		i++
	}
	rec.Content = &ContentSource{Inline: strings.TrimSpace(rec.Raw[start:end])}
	return i
}

// isTrailingBarrier marks token kinds that end inline content capture.
func isTrailingBarrier(k lexer.TokenKind) bool {
	switch k {
	case lexer.PermMarker, lexer.Comment, lexer.HashAnchor:
		return true
	}
	return false
}

func consumeSeed(rec *LineRecord, tokens []lexer.Token, i int, report func(string, diag.Severity, string, string)) int {
	start, end := -1, -1
	for i < len(tokens) && isPathBearing(tokens[i].Kind) {
		if start < 0 {
			start = tokens[i].Offset
		}
		end = tokens[i].End()
		i++
	}
	if start < 0 {
		report("empty-seed", diag.Warning, "<< requires a source path", "write path << existing/file")
		return i
	}
	seed, _, ok := sanitizePath(rec.Raw[start:end])
	if !ok {
		report("degenerate-path", diag.Warning, fmt.Sprintf("seed path %q is degenerate", rec.Raw[start:end]), "")
		return i
	}
	rec.SeedPath = seed
	return i
}

func consumeSymlink(rec *LineRecord, tokens []lexer.Token, i int, report func(string, diag.Severity, string, string)) int {
	start, end := -1, -1
	for i < len(tokens) && isPathBearing(tokens[i].Kind) {
		if start < 0 {
			start = tokens[i].Offset
		}
		end = tokens[i].End()
		i++
	}
	if start < 0 {
		report("empty-symlink", diag.Warning, "-> requires a target path", "write link -> target")
		return i
	}
	rec.SymlinkTarget = trimWrappingQuotes(strings.TrimSpace(rec.Raw[start:end]))
	return i
}

func consumePermission(rec *LineRecord, tokens []lexer.Token, i int, report func(string, diag.Severity, string, string)) int {
	if i >= len(tokens) {
		report("empty-permission", diag.Warning, "%% marker carries no permission value", "")
		return i
	}
	value := strings.TrimSpace(tokens[i].Text)
	i++

	if octalPerm.MatchString(value) {
		if len(value) == 3 {
			value = "0" + value
		}
		rec.Permissions = value
		return i
	}
	if mode, ok := permAliases[strings.ToLower(value)]; ok {
		rec.Permissions = mode
		return i
	}

	report("impure-permission", diag.Warning,
		fmt.Sprintf("%q is neither an octal mode nor a known alias", value),
		suggestAlias(value))
	return i
}

// suggestAlias builds a "did you mean" hint for an unrecognized permission
// alias.
func suggestAlias(value string) string {
	names := make([]string, 0, len(permAliases))
	for name := range permAliases {
		names = append(names, name)
	}
	sort.Strings(names)

	ranks := fuzzy.RankFindFold(value, names)
	if len(ranks) == 0 {
		return "use an octal mode like 0644, or one of: " + strings.Join(names, ", ")
	}
	sort.Sort(ranks)
	return fmt.Sprintf("did you mean %q?", ranks[0].Target)
}

func parseHashAnchor(rec *LineRecord, text string, report func(string, diag.Severity, string, string)) {
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "@hash("), ")")
	algo, digest, found := strings.Cut(inner, ":")
	if !found {
		report("invalid-hash-anchor", diag.Warning,
			fmt.Sprintf("%q is not in algo:digest form", inner), "write @hash(sha256:<hex>)")
		return
	}
	algo = strings.ToLower(strings.TrimSpace(algo))
	digest = strings.TrimSpace(digest)

	wantLen, known := hashDigestLen[algo]
	if !known {
		report("invalid-hash-anchor", diag.Warning,
			fmt.Sprintf("unsupported algorithm %q", algo),
			"supported: sha256, sha512, blake2b, sha3-256")
		return
	}
	if len(digest) != wantLen || !hexDigest.MatchString(digest) {
		report("invalid-hash-anchor", diag.Warning,
			fmt.Sprintf("digest %q is not %d hex characters", digest, wantLen), "")
		return
	}
	rec.ExpectedHash = &plan.HashAnchor{Algo: algo, Digest: strings.ToLower(digest)}
}

// parseSelector splits a parenthesized semantic selector into key=value
// pairs. Bare words become keys with empty values.
func parseSelector(text string) map[string]string {
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "("), ")")
	out := make(map[string]string)
	for _, field := range strings.Fields(inner) {
		k, v, _ := strings.Cut(field, "=")
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// applyTextualFallback re-classifies a line as content-bearing when the
// token walk recorded no content, seed, or mutation but the raw text still
// carries an assignment sigil. This recovers lines the grammar tables missed
// (quoting and spacing edge cases) instead of silently dropping them as bare
// paths.
func applyTextualFallback(rec *LineRecord, tokens []lexer.Token) {
	if rec.Mutation != nil || rec.Content != nil || rec.SeedPath != "" ||
		rec.SymlinkTarget != "" || rec.ExpectedHash != nil {
		return
	}

	// Ignore sigils inside a trailing comment.
	searchable := rec.Raw
	for _, t := range tokens {
		if t.Kind == lexer.Comment {
			searchable = rec.Raw[:t.Offset]
			break
		}
	}

	bestPos := -1
	bestSigil := ""
	for _, sigil := range assignmentSigils {
		if pos := strings.Index(searchable, sigil); pos >= 0 && (bestPos < 0 || pos < bestPos) {
			bestPos = pos
			bestSigil = sigil
		}
	}
	if bestPos < 0 {
		return
	}

	if bestSigil == "<<" {
		seed, _, ok := sanitizePath(searchable[bestPos+2:])
		if ok {
			rec.SeedPath = seed
		}
	} else {
		op := sigilOps[bestSigil]
		rec.Mutation = &op
		rec.Content = &ContentSource{IsBlock: true, Style: BlockIndent}
	}

	// If path accumulation ran past the sigil, cut it back.
	if path, _, ok := sanitizePath(searchable[:bestPos]); ok {
		rec.Path = path
	}
}

// zeroWidth runes and box-drawing glyphs are stripped from paths so that
// blueprints pasted from rendered tree listings still parse.
func sanitizePath(s string) (path string, isDir, ok bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 0x2500 && r <= 0x257F: // box drawing
		case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	cleaned = trimWrappingQuotes(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if strings.HasSuffix(cleaned, "/") {
		isDir = true
		cleaned = strings.TrimRight(cleaned, "/")
	}
	cleaned = strings.TrimPrefix(cleaned, "./")

	if cleaned == "" || cleaned == "." {
		return "", isDir, false
	}
	return cleaned, isDir, true
}

func trimWrappingQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// unquote strips wrapping quotes and normalizes the common escapes.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	quote := s[0]
	body := s[1 : len(s)-1]

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case quote:
			b.WriteByte(quote)
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

// ParseDirective splits "@if x == y" into ("if", "x == y").
func ParseDirective(trimmed string) (name, arg string) {
	body := strings.TrimPrefix(trimmed, "@")
	name, arg, _ = strings.Cut(body, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

// assignIndex returns the position of the first = outside parentheses, or
// -1. Signatures like pattern(^x=y$) may carry their own = characters.
func assignIndex(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func deconstructVariable(rec *LineRecord, trimmed string) []diag.Heresy {
	body := variableDecl(trimmed)
	var name, value string
	found := false
	if eq := assignIndex(body); eq >= 0 {
		name, value, found = body[:eq], body[eq+1:], true
	}
	if !found {
		rec.Valid = false
		return []diag.Heresy{{
			Key:        "malformed-variable",
			Severity:   diag.Warning,
			Line:       rec.Line,
			LineText:   rec.Raw,
			Details:    "variable definition has no = sign",
			Suggestion: "write $$ NAME = value",
		}}
	}

	name = strings.TrimSpace(name)
	if rec.Kind == ContractDef {
		// The signature after "name:" rides in DirectiveArg; the engine
		// validates the value against it.
		n, sig, _ := strings.Cut(name, ":")
		name = strings.TrimSpace(n)
		rec.DirectiveArg = strings.TrimSpace(sig)
	}
	rec.VarName = name
	rec.VarValue = strings.TrimSpace(value)
	return nil
}

// ParseCall splits "name(a=1, b=two)" into the name and its bindings. Used
// for macro/task parameter lists, @call sites and trait invocations.
func ParseCall(s string) (name string, args map[string]string) {
	open := strings.Index(s, "(")
	if open < 0 {
		return strings.TrimSpace(s), nil
	}
	name = strings.TrimSpace(s[:open])
	inner := strings.TrimSuffix(strings.TrimSpace(s[open:]), ")")
	inner = strings.TrimPrefix(inner, "(")

	args = make(map[string]string)
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, found := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if found {
			args[k] = strings.TrimSpace(trimWrappingQuotes(strings.TrimSpace(v)))
		} else {
			args[k] = ""
		}
	}
	if len(args) == 0 {
		args = nil
	}
	return name, args
}

func deconstructTrait(rec *LineRecord, trimmed string) []diag.Heresy {
	prefix := "%% trait"
	if rec.Kind == TraitUse {
		prefix = "%% use"
	}
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
	name, args := ParseCall(body)
	if name == "" {
		rec.Valid = false
		return []diag.Heresy{{
			Key:      "anonymous-trait",
			Severity: diag.Warning,
			Line:     rec.Line,
			LineText: rec.Raw,
			Details:  prefix + " requires a name",
		}}
	}
	rec.TraitName = name
	rec.TraitArgs = args
	return nil
}
