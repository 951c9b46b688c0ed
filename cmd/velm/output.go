package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/novalym/velm-sub008/core/diag"
	"github.com/novalym/velm-sub008/core/plan"
)

// emitPlan writes the plan in the selected output format. The tree format
// also prints the canonical fingerprint so two runs are comparable at a
// glance.
func emitPlan(w io.Writer, p *plan.ExecutionPlan) error {
	switch outputFormat {
	case "tree", "":
		if noColor {
			fmt.Fprintln(w, p.StringNoColor())
		} else {
			fmt.Fprint(w, p.String())
		}
		if fp, err := p.Fingerprint(); err == nil {
			fmt.Fprintf(w, "fingerprint: %s\n", fp)
		}
		return nil

	case "yaml":
		raw, err := yaml.Marshal(p)
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err

	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	return fmt.Errorf("unknown output format %q (want tree, yaml or json)", outputFormat)
}

// printDiagnostics renders the findings as a table, worst first.
func printDiagnostics(w io.Writer, heresies []diag.Heresy) {
	if len(heresies) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Severity", "Line", "Key", "Details"})
	for _, sev := range []diag.Severity{diag.Critical, diag.Warning, diag.Info} {
		for _, h := range heresies {
			if h.Severity != sev {
				continue
			}
			details := h.Details
			if h.Suggestion != "" {
				details += "\nhint: " + h.Suggestion
			}
			t.AppendRow(table.Row{h.Severity, h.Line, h.Key, details})
		}
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
