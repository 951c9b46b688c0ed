// Package diag defines the structured diagnostics ("heresies") accumulated
// while compiling a blueprint. Diagnostics are values, not errors: anything
// recoverable is recorded here and the scan continues, so a single document
// pass surfaces every problem it can find.
package diag

import (
	"fmt"
	"strings"
)

// Severity classifies how a diagnostic affects the compile result.
type Severity int

const (
	// Info diagnostics are advisory and never affect plan purity.
	Info Severity = iota
	// Warning diagnostics indicate a likely mistake the compiler recovered from.
	Warning
	// Critical diagnostics mark the document impure; a plan may still be
	// produced, but it must not be reported as successful.
	Critical
)

var severityNames = [...]string{
	Info:     "info",
	Warning:  "warning",
	Critical: "critical",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) && s >= 0 {
		return severityNames[s]
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Heresy is a single structured diagnostic. It carries enough context (line
// number, original line text, remediation hint) to be shown to an end user
// without further lookup.
type Heresy struct {
	Key        string   `json:"key" yaml:"key"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Line       int      `json:"line" yaml:"line"`
	LineText   string   `json:"line_text,omitempty" yaml:"line_text,omitempty"`
	Details    string   `json:"details,omitempty" yaml:"details,omitempty"`
	Suggestion string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

func (h Heresy) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] line %d: %s", h.Severity, h.Line, h.Key)
	if h.Details != "" {
		b.WriteString(": ")
		b.WriteString(h.Details)
	}
	if h.Suggestion != "" {
		b.WriteString(" (")
		b.WriteString(h.Suggestion)
		b.WriteString(")")
	}
	return b.String()
}

// Collector is an append-only list of diagnostics with a purity flag.
// The zero value is ready to use.
type Collector struct {
	heresies []Heresy
	pure     bool
	started  bool
}

// NewCollector returns an empty collector in the pure state.
func NewCollector() *Collector {
	return &Collector{pure: true, started: true}
}

// Report appends a diagnostic. A Critical severity permanently flips the
// collector impure; scanning is expected to continue regardless.
func (c *Collector) Report(h Heresy) {
	if !c.started {
		c.pure = true
		c.started = true
	}
	c.heresies = append(c.heresies, h)
	if h.Severity == Critical {
		c.pure = false
	}
}

// Reportf is shorthand for reporting a diagnostic with formatted details.
func (c *Collector) Reportf(key string, sev Severity, line int, lineText, format string, args ...any) {
	c.Report(Heresy{
		Key:      key,
		Severity: sev,
		Line:     line,
		LineText: lineText,
		Details:  fmt.Sprintf(format, args...),
	})
}

// Extend appends a batch of diagnostics from a downstream pass.
func (c *Collector) Extend(hs []Heresy) {
	for _, h := range hs {
		c.Report(h)
	}
}

// Pure reports whether no Critical diagnostic has been recorded.
func (c *Collector) Pure() bool {
	if !c.started {
		return true
	}
	return c.pure
}

// All returns the recorded diagnostics in report order. The returned slice is
// a copy; mutating it does not affect the collector.
func (c *Collector) All() []Heresy {
	out := make([]Heresy, len(c.heresies))
	copy(out, c.heresies)
	return out
}

// Len returns the number of recorded diagnostics.
func (c *Collector) Len() int { return len(c.heresies) }
