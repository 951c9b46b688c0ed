package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile [file]",
		Short: "Parse and resolve a blueprint into an execution plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				blueprintFile = args[0]
			}
			return runCompile(cmd)
		},
	}
}

func runCompile(cmd *cobra.Command) error {
	text, err := readBlueprint()
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	p, err := eng.Compile(text)
	if err != nil {
		return err
	}

	if err := emitPlan(cmd.OutOrStdout(), p); err != nil {
		return err
	}
	printDiagnostics(os.Stderr, p.Diagnostics)

	if !p.Pure {
		return fmt.Errorf("plan is impure: %d diagnostic(s), at least one critical", len(p.Diagnostics))
	}
	return nil
}
