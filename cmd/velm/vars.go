package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newVarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vars [file]",
		Short: "Show the converged variable environment and usage dossier",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				blueprintFile = args[0]
			}
			return runVars(cmd)
		},
	}
}

func runVars(cmd *cobra.Command) error {
	text, err := readBlueprint()
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	if _, err := eng.Parse(text); err != nil {
		return err
	}
	p, err := eng.Resolve()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "environment:")
	for _, name := range p.SortedVariableNames() {
		fmt.Fprintf(out, "  %s: %v\n", name, p.Environment[name])
	}
	if len(p.Dossier) > 0 {
		fmt.Fprintln(out, "dossier:")
		raw, err := yaml.Marshal(p.Dossier)
		if err != nil {
			return err
		}
		fmt.Fprint(out, indentBlock(string(raw)))
	}
	printDiagnostics(cmd.ErrOrStderr(), p.Diagnostics)
	return nil
}

func indentBlock(s string) string {
	out := ""
	for _, line := range splitKeepNonEmpty(s) {
		out += "  " + line + "\n"
	}
	return out
}

func splitKeepNonEmpty(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
