// Package plan defines the compiler's final output: an ordered list of
// file-system operations plus an ordered list of shell commands, together
// with the diagnostics raised while producing them. The plan is a pure
// value; materializing it on disk is the caller's concern.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/novalym/velm-sub008/core/diag"
)

// MutationOp describes how a scaffold item's content is applied to any file
// already present at its path.
type MutationOp int

const (
	Create MutationOp = iota
	Append
	Prepend
	Overwrite
	Subtract
)

var mutationNames = [...]string{
	Create:    "create",
	Append:    "append",
	Prepend:   "prepend",
	Overwrite: "overwrite",
	Subtract:  "subtract",
}

func (m MutationOp) String() string {
	if int(m) < len(mutationNames) && m >= 0 {
		return mutationNames[m]
	}
	return fmt.Sprintf("MutationOp(%d)", int(m))
}

// HashAnchor pins a scaffold item's expected content digest.
type HashAnchor struct {
	Algo   string `json:"algo" yaml:"algo"`
	Digest string `json:"digest" yaml:"digest"`
}

func (h HashAnchor) String() string {
	return h.Algo + ":" + h.Digest
}

// ScaffoldItem is one concrete file-system operation. Items are immutable
// once placed in a plan.
type ScaffoldItem struct {
	Path          string            `json:"path" yaml:"path"`
	IsDir         bool              `json:"is_dir" yaml:"is_dir"`
	Content       *string           `json:"content,omitempty" yaml:"content,omitempty"`
	Mutation      MutationOp        `json:"mutation" yaml:"mutation"`
	Permissions   string            `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	ExpectedHash  *HashAnchor       `json:"expected_hash,omitempty" yaml:"expected_hash,omitempty"`
	SymlinkTarget string            `json:"symlink_target,omitempty" yaml:"symlink_target,omitempty"`
	SeedPath      string            `json:"seed_path,omitempty" yaml:"seed_path,omitempty"`
	Selector      map[string]string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Origin        int               `json:"origin" yaml:"origin"` // source line the item was emitted from
}

// Command is one post-materialization shell command with its optional stdin
// payload and compensation commands.
type Command struct {
	Text       string   `json:"text" yaml:"text"`
	SourceLine int      `json:"source_line" yaml:"source_line"`
	Stdin      []string `json:"stdin,omitempty" yaml:"stdin,omitempty"`
	Undo       []string `json:"undo,omitempty" yaml:"undo,omitempty"`
	OnFailure  []string `json:"on_failure,omitempty" yaml:"on_failure,omitempty"`
	Assertion  bool     `json:"assertion,omitempty" yaml:"assertion,omitempty"`
}

// ExecutionPlan is the ordered, deterministic result of resolving one
// blueprint document. Produced once per Resolve call; never mutated after.
type ExecutionPlan struct {
	Items       []ScaffoldItem `json:"items" yaml:"items"`
	Commands    []Command      `json:"commands" yaml:"commands"`
	Diagnostics []diag.Heresy  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Environment map[string]any `json:"environment,omitempty" yaml:"environment,omitempty"`
	// Dossier maps each variable name to the source locations that use it.
	// Informational only; derived from the final item/command list.
	Dossier map[string][]string `json:"dossier,omitempty" yaml:"dossier,omitempty"`
	// Pure is false when any Critical diagnostic was raised.
	Pure bool `json:"pure" yaml:"pure"`
}

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorBlue   = "\033[34m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// String renders the plan as a colored tree.
func (ep *ExecutionPlan) String() string {
	return ep.render(true)
}

// StringNoColor renders the plan as a tree without ANSI colors.
func (ep *ExecutionPlan) StringNoColor() string {
	return strings.TrimRight(ep.render(false), "\n")
}

func (ep *ExecutionPlan) render(color bool) string {
	var b strings.Builder

	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + ColorReset
	}

	b.WriteString(paint(ColorBold+ColorBlue, "plan"))
	b.WriteString(":\n")

	total := len(ep.Items) + len(ep.Commands)
	n := 0
	for _, item := range ep.Items {
		n++
		connector := "├─ "
		if n == total {
			connector = "└─ "
		}
		b.WriteString(connector)
		b.WriteString(ep.formatItem(item, paint))
		b.WriteString("\n")
	}
	for _, cmd := range ep.Commands {
		n++
		connector := "├─ "
		if n == total {
			connector = "└─ "
		}
		text := cmd.Text
		if len(text) > 80 {
			text = text[:77] + "..."
		}
		prefix := "$ "
		if cmd.Assertion {
			prefix = "?? "
		}
		b.WriteString(connector)
		b.WriteString(paint(ColorCyan, prefix+text))
		b.WriteString("\n")
	}
	return b.String()
}

func (ep *ExecutionPlan) formatItem(item ScaffoldItem, paint func(string, string) string) string {
	var parts []string
	if item.IsDir {
		parts = append(parts, paint(ColorBold, item.Path+"/"))
	} else {
		parts = append(parts, item.Path)
	}
	if item.SymlinkTarget != "" {
		parts = append(parts, paint(ColorGray, "-> "+item.SymlinkTarget))
	}
	if item.Mutation != Create {
		parts = append(parts, paint(ColorYellow, "["+item.Mutation.String()+"]"))
	}
	if item.Permissions != "" {
		parts = append(parts, paint(ColorGreen, item.Permissions))
	}
	if item.ExpectedHash != nil {
		parts = append(parts, paint(ColorGray, "@hash("+item.ExpectedHash.String()+")"))
	}
	if item.SeedPath != "" {
		parts = append(parts, paint(ColorGray, "<< "+item.SeedPath))
	}
	if item.Content != nil {
		parts = append(parts, paint(ColorDim, fmt.Sprintf("(%d bytes)", len(*item.Content))))
	}
	return strings.Join(parts, " ")
}

// Summary returns counts useful for one-line CLI reporting.
func (ep *ExecutionPlan) Summary() (dirs, files, symlinks, commands int) {
	for _, item := range ep.Items {
		switch {
		case item.IsDir:
			dirs++
		case item.SymlinkTarget != "":
			symlinks++
		default:
			files++
		}
	}
	return dirs, files, symlinks, len(ep.Commands)
}

// SortedVariableNames returns the environment's keys in stable order.
func (ep *ExecutionPlan) SortedVariableNames() []string {
	names := make([]string, 0, len(ep.Environment))
	for k := range ep.Environment {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
