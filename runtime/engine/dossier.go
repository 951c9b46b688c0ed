package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/novalym/velm-sub008/runtime/parser"
)

// dossier derives the informational variable-usage map: for every converged
// variable, the scanned lines that reference it through a template marker.
// Purely advisory output for external tooling; it never affects the plan.
func (e *Engine) dossier(env map[string]any) map[string][]string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string][]string, len(names))
	for _, name := range names {
		var sites []string
		for _, rec := range e.records {
			if referencesVariable(rec.Raw, name) {
				sites = append(sites, usageSite(rec))
			}
		}
		for _, cmd := range e.commands {
			if referencesVariable(cmd.Text, name) || referencesVariable(strings.Join(cmd.Stdin, "\n"), name) {
				sites = append(sites, fmt.Sprintf("line %d: command", cmd.SourceLine))
			}
		}
		if len(sites) > 0 {
			out[name] = sites
		}
	}
	return out
}

// referencesVariable reports whether text mentions name inside a template
// marker. A substring probe inside the marker is enough for an advisory map;
// the renderer remains the authority on actual resolution.
func referencesVariable(text, name string) bool {
	for rest := text; ; {
		start := strings.Index(rest, "{{")
		if start < 0 {
			return false
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return false
		}
		if strings.Contains(rest[start:start+end], name) {
			return true
		}
		rest = rest[start+end:]
	}
}

func usageSite(rec *parser.LineRecord) string {
	what := strings.ToLower(rec.Kind.String())
	if rec.Path != "" {
		what = rec.Path
	}
	return fmt.Sprintf("line %d: %s", rec.Line, what)
}
