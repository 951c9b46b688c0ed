// Package engine hosts the parser orchestrator: the per-document state
// machine that drives the line scan, accumulates records and diagnostics,
// converges the variable environment, and hands the tree to the planner.
// One Engine owns one document; nothing is shared between instances, so
// independent documents may compile on separate goroutines.
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/novalym/velm-sub008/core/contract"
	"github.com/novalym/velm-sub008/core/diag"
	"github.com/novalym/velm-sub008/core/plan"
	"github.com/novalym/velm-sub008/core/render"
	"github.com/novalym/velm-sub008/runtime/lexer"
	"github.com/novalym/velm-sub008/runtime/parser"
	"github.com/novalym/velm-sub008/runtime/planner"
)

// maxImportDepth is the recursion ceiling for nested @import documents.
// Breaching it is fatal, not a diagnostic: it means a structural cycle.
const maxImportDepth = 25

// FatalError is the hard-failure tier: conditions that make continued
// scanning logically unsafe. Everything recoverable is a diagnostic instead.
type FatalError struct {
	Message    string
	Suggestion string
}

func (e *FatalError) Error() string {
	if e.Suggestion == "" {
		return e.Message
	}
	return e.Message + " (" + e.Suggestion + ")"
}

// state tracks the orchestrator's lifecycle over one document.
type state int

const (
	stateIdle state = iota
	stateScanning
	stateFinalized
)

// Importer loads the text of an imported sub-document by its reference path.
type Importer func(path string) (string, error)

// Engine is the parser orchestrator. Construct with New, feed one document
// through Parse, then call Resolve. A zero Engine is not usable.
type Engine struct {
	dialect   lexer.Dialect
	renderer  render.Renderer
	validator *contract.Validator
	importer  Importer
	cache     Cache
	logger    *slog.Logger

	external  map[string]any
	declared  map[string]any
	records   []*parser.LineRecord
	commands  []plan.Command
	collector *diag.Collector
	state     state
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithDialect sets the starting dialect. @dialect lines may switch it
// mid-scan.
func WithDialect(d lexer.Dialect) Option {
	return func(e *Engine) { e.dialect = d }
}

// WithRenderer replaces the default template renderer.
func WithRenderer(r render.Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithValidator sets the contract validator for typed variable declarations.
func WithValidator(v *contract.Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithImporter enables @import by supplying the sub-document loader. Without
// one, @import lines diagnose as unresolvable.
func WithImporter(load Importer) Option {
	return func(e *Engine) { e.importer = load }
}

// WithCache attaches a caller-supplied compile cache used by Compile. The
// engine never creates a cache of its own.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithExternalVars seeds the external (pre-resolved) variable layer.
func WithExternalVars(vars map[string]any) Option {
	return func(e *Engine) {
		for k, v := range vars {
			e.external[k] = v
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds an orchestrator with the form dialect, the default renderer and
// a fresh diagnostic collector.
func New(opts ...Option) *Engine {
	e := &Engine{
		dialect:   lexer.DialectForm,
		renderer:  render.NewTemplateRenderer(),
		validator: contract.NewValidator(),
		external:  make(map[string]any),
		declared:  make(map[string]any),
		collector: diag.NewCollector(),
		logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseResult is what one full document scan yields.
type ParseResult struct {
	Records     []*parser.LineRecord
	Commands    []plan.Command
	Diagnostics []diag.Heresy
	Environment map[string]any
}

// Parse runs the full line scan over text: classify and deconstruct every
// line, consume content and stdin blocks, follow imports, and accumulate
// variables, commands and diagnostics. A single bad line degrades to a
// diagnostic; only document-wide failures (the import ceiling) return an
// error.
func (e *Engine) Parse(text string) (*ParseResult, error) {
	e.state = stateScanning
	if err := e.scan(text, 0); err != nil {
		return nil, err
	}

	env := make(map[string]any, len(e.external)+len(e.declared))
	for k, v := range e.external {
		env[k] = v
	}
	for k, v := range e.declared {
		env[k] = v
	}

	return &ParseResult{
		Records:     e.records,
		Commands:    e.commands,
		Diagnostics: e.collector.All(),
		Environment: env,
	}, nil
}

// scan is the recursive line walk; depth counts nested imports.
func (e *Engine) scan(text string, depth int) error {
	if depth > maxImportDepth {
		return &FatalError{
			Message:    fmt.Sprintf("import recursion exceeds the ceiling of %d documents", maxImportDepth),
			Suggestion: "check for a cycle in @import references",
		}
	}

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		rec, heresies := parser.DeconstructLine(lines[i], i+1, e.dialect)
		e.collector.Extend(heresies)

		switch rec.Kind {
		case parser.Void, parser.Comment:
			continue

		case parser.Variable:
			e.declared[rec.VarName] = coerceScalar(rec.VarValue)
			e.records = append(e.records, rec)

		case parser.ContractDef:
			e.declareTyped(rec)
			e.records = append(e.records, rec)

		case parser.Directive:
			next, err := e.scanDirective(rec, depth)
			if err != nil {
				return err
			}
			if next {
				continue
			}
			e.records = append(e.records, rec)

		default:
			if rec.Kind.IsCommand() || rec.Kind == parser.OnHeresy || rec.Kind == parser.OnUndo {
				i = e.collectCommand(rec, lines, i)
				continue
			}

			if rec.OpensBlock() {
				body, next := parser.ConsumeBlock(lines, i, rec.Indent, rec.Content.Style)
				rec.Content.Lines = body
				i = next - 1
			}
			e.records = append(e.records, rec)
		}
	}
	return nil
}

// scanDirective handles the scan-time directives (@import, @dialect) and
// reports whether the record was fully consumed here.
func (e *Engine) scanDirective(rec *parser.LineRecord, depth int) (consumed bool, err error) {
	switch rec.Directive {
	case "import":
		if e.importer == nil {
			e.collector.Report(diag.Heresy{
				Key:        "unresolvable-import",
				Severity:   diag.Critical,
				Line:       rec.Line,
				LineText:   rec.Raw,
				Details:    fmt.Sprintf("no import loader is configured for %q", rec.DirectiveArg),
				Suggestion: "construct the engine with WithImporter",
			})
			return true, nil
		}
		sub, loadErr := e.importer(rec.DirectiveArg)
		if loadErr != nil {
			e.collector.Report(diag.Heresy{
				Key:      "unresolvable-import",
				Severity: diag.Critical,
				Line:     rec.Line,
				LineText: rec.Raw,
				Details:  loadErr.Error(),
			})
			return true, nil
		}
		e.logger.Debug("scanning imported document", "path", rec.DirectiveArg, "depth", depth+1)
		return true, e.scan(sub, depth+1)

	case "dialect":
		d, parseErr := lexer.ParseDialect(strings.TrimSpace(rec.DirectiveArg))
		if parseErr != nil {
			e.collector.Report(diag.Heresy{
				Key:        "unknown-dialect",
				Severity:   diag.Warning,
				Line:       rec.Line,
				LineText:   rec.Raw,
				Details:    parseErr.Error(),
				Suggestion: "supported dialects are form and workflow",
			})
			return true, nil
		}
		e.dialect = d
		return true, nil
	}
	return false, nil
}

// declareTyped routes a typed declaration through the contract validator
// before admitting it to the declared layer. A violation keeps the raw value
// out of the environment entirely rather than admitting an unvetted one.
// Scanned text is coerced first so "8080" can satisfy an int contract and
// carry a real number into the environment.
func (e *Engine) declareTyped(rec *parser.LineRecord) {
	value := coerceScalar(rec.VarValue)
	if err := e.validator.Validate(rec.DirectiveArg, value, rec.VarName); err != nil {
		rec.Valid = false
		e.collector.Report(diag.Heresy{
			Key:        "contract-violation",
			Severity:   diag.Critical,
			Line:       rec.Line,
			LineText:   rec.Raw,
			Details:    err.Error(),
			Suggestion: fmt.Sprintf("give %s a value matching its %s contract", rec.VarName, rec.DirectiveArg),
		})
		return
	}
	e.declared[rec.VarName] = value
}

// coerceScalar interprets scanned text as JSON when it parses as such
// (numbers, booleans, lists, maps); anything else stays a plain string.
func coerceScalar(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil && v != nil {
		return v
	}
	return text
}

// collectCommand accumulates one command record, consuming any indented
// stdin block beneath it and attaching on-heresy/on-undo companions to the
// most recent command. Returns the scan index to resume from.
func (e *Engine) collectCommand(rec *parser.LineRecord, lines []string, i int) int {
	switch rec.Kind {
	case parser.OnHeresy:
		if n := len(e.commands); n > 0 {
			e.commands[n-1].OnFailure = append(e.commands[n-1].OnFailure, rec.CommandText)
		} else {
			e.collector.Report(diag.Heresy{
				Key:      "orphaned-handler",
				Severity: diag.Warning,
				Line:     rec.Line,
				LineText: rec.Raw,
				Details:  "on-heresy has no preceding command to guard",
			})
		}
		return i

	case parser.OnUndo:
		if n := len(e.commands); n > 0 {
			e.commands[n-1].Undo = append(e.commands[n-1].Undo, rec.CommandText)
		} else {
			e.collector.Report(diag.Heresy{
				Key:      "orphaned-handler",
				Severity: diag.Warning,
				Line:     rec.Line,
				LineText: rec.Raw,
				Details:  "on-undo has no preceding command to revert",
			})
		}
		return i
	}

	cmd := plan.Command{
		Text:       rec.CommandText,
		SourceLine: rec.Line,
		Assertion:  rec.Kind == parser.Vow,
	}

	if i+1 < len(lines) && parser.VisualIndent(lines[i+1]) > rec.Indent && strings.TrimSpace(lines[i+1]) != "" {
		body, next := parser.ConsumeBlock(lines, i, rec.Indent, parser.BlockIndent)
		cmd.Stdin = body
		i = next - 1
	}

	e.commands = append(e.commands, cmd)
	return i
}

// Resolve converges the variable environment, weaves the tree, runs the
// logic weaver and returns the finished plan. Convergence failure returns an
// empty plan carrying the diagnostic, never a half-rendered one.
func (e *Engine) Resolve() (*plan.ExecutionPlan, error) {
	if e.state != stateScanning {
		return nil, &FatalError{Message: "resolve called before parse"}
	}

	env, err := planner.Converge(e.external, e.declared, e.renderer)
	if err != nil {
		e.collector.Report(diag.Heresy{
			Key:        "convergence-failure",
			Severity:   diag.Critical,
			Details:    err.Error(),
			Suggestion: "break the circular variable reference or define the missing variable",
		})
		e.state = stateFinalized
		return planner.Assemble(planner.Result{}, e.collector.All(), nil, nil), nil
	}

	root, weaveHeresies := planner.Weave(e.records)
	e.collector.Extend(weaveHeresies)

	res := planner.Resolve(root, env, e.commands, e.renderer)
	e.state = stateFinalized
	return planner.Assemble(res, e.collector.All(), env, e.dossier(env)), nil
}

// Compile is the one-shot convenience: parse then resolve, consulting the
// attached cache when one was supplied. The cache key covers both the
// document text and the external variable layer, so a changed --set value
// never serves a stale plan.
func (e *Engine) Compile(text string) (*plan.ExecutionPlan, error) {
	var key string
	if e.cache != nil {
		var err error
		key, err = CacheKey(text, e.external)
		if err == nil {
			if cached, ok := e.cache.Get(key); ok {
				e.logger.Debug("compile cache hit", "key", key)
				return cached, nil
			}
		}
	}

	if _, err := e.Parse(text); err != nil {
		return nil, err
	}
	p, err := e.Resolve()
	if err != nil {
		return nil, err
	}

	if e.cache != nil && key != "" && p.Pure {
		e.cache.Add(key, p)
	}
	return p, nil
}
