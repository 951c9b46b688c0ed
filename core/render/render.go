// Package render defines the template-rendering collaborator consumed by the
// compiler. The full rendering engine is external to the compiler core; the
// convergence engine and logic weaver only depend on the Renderer interface
// and its failure-is-failure contract: an undefined reference must return an
// error, never a silent empty substitution.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// Renderer expands {{ expr }} constructs inside an already-extracted string.
// Implementations must be pure and safe for concurrent use.
type Renderer interface {
	Render(tmpl string, context map[string]any) (string, error)
}

// Error wraps a rendering failure with the template that caused it.
type Error struct {
	Template string
	Cause    error
}

func (e *Error) Error() string {
	tmpl := e.Template
	if len(tmpl) > 60 {
		tmpl = tmpl[:57] + "..."
	}
	return fmt.Sprintf("render %q: %v", tmpl, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// ContainsMarkers reports whether a string still carries template constructs
// of either flavor, including {% %} tags handed through to the downstream
// rendering engine.
func ContainsMarkers(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

// ContainsExpansion reports whether a string carries {{ }} expressions this
// renderer can expand itself. Convergence keys off this: a {% %} passthrough
// tag is not an unexpanded reference.
func ContainsExpansion(s string) bool {
	return strings.Contains(s, "{{")
}

// bareIdent matches {{ name }} / {{ a.b }} references so they can be
// rewritten into field access before text/template parses them.
var bareIdent = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*\}\}`)

// TemplateRenderer is the default Renderer, backed by text/template with
// missingkey=error so undefined variables fail loudly.
type TemplateRenderer struct{}

// NewTemplateRenderer returns the default renderer.
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

// Render expands tmpl against context. Blueprint templates reference
// variables by bare name ({{ project }}); text/template wants {{.project}},
// so bare references are rewritten first. Anything beyond simple references
// is passed through to text/template untouched.
func (r *TemplateRenderer) Render(tmpl string, context map[string]any) (string, error) {
	rewritten := bareIdent.ReplaceAllString(tmpl, `{{.$1}}`)

	t, err := template.New("blueprint").Option("missingkey=error").Parse(rewritten)
	if err != nil {
		return "", &Error{Template: tmpl, Cause: err}
	}

	ctx := context
	if ctx == nil {
		ctx = map[string]any{}
	}

	var b strings.Builder
	if err := t.Execute(&b, ctx); err != nil {
		return "", &Error{Template: tmpl, Cause: err}
	}

	out := b.String()
	// text/template renders missing nested fields as "<no value>" in some
	// paths even with missingkey=error; treat that as the undefined-variable
	// failure the convergence contract requires.
	if strings.Contains(out, "<no value>") {
		return "", &Error{Template: tmpl, Cause: fmt.Errorf("undefined reference")}
	}
	return out, nil
}
