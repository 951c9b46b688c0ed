package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [file]",
		Short: "Parse a blueprint and report diagnostics without resolving",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				blueprintFile = args[0]
			}
			return runLint(cmd)
		},
	}
}

func runLint(cmd *cobra.Command) error {
	text, err := readBlueprint()
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	result, err := eng.Parse(text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(result.Diagnostics) == 0 {
		fmt.Fprintf(out, "%s: %d lines scanned, no findings\n", blueprintFile, len(result.Records))
		return nil
	}
	printDiagnostics(out, result.Diagnostics)
	return nil
}
