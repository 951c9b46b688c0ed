package main

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/novalym/velm-sub008/runtime/engine"
)

// watchCacheSize bounds the recompile cache; unchanged documents recompile
// from the cache instead of rescanning.
const watchCacheSize = 32

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [file]",
		Short: "Recompile the blueprint whenever it changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				blueprintFile = args[0]
			}
			if blueprintFile == "-" {
				return fmt.Errorf("watch needs a file, not stdin")
			}
			return runWatch(cmd)
		},
	}
}

func runWatch(cmd *cobra.Command) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(blueprintFile)); err != nil {
		return err
	}

	cache, err := engine.NewLRUCache(watchCacheSize)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	target := filepath.Clean(blueprintFile)

	compileOnce(cmd, cache)
	fmt.Fprintf(out, "watching %s\n", target)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fmt.Fprintf(out, "\n%s changed, recompiling\n", target)
			compileOnce(cmd, cache)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", watchErr)
		}
	}
}

// compileOnce runs a full compile with a fresh engine sharing the watch
// cache. Failures are printed and swallowed; the watch loop must survive a
// broken intermediate save.
func compileOnce(cmd *cobra.Command, cache engine.Cache) {
	text, err := readBlueprint()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	eng, err := newEngine()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	engine.WithCache(cache)(eng)

	p, err := eng.Compile(text)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	if err := emitPlan(cmd.OutOrStdout(), p); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	printDiagnostics(cmd.ErrOrStderr(), p.Diagnostics)
}
