package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/novalym/velm-sub008/core/diag"
	"github.com/novalym/velm-sub008/core/plan"
)

// CheckCaseCollisions reports every group of emitted paths that differ only
// by letter case. Such a plan is unportable: it materializes fine on a
// case-sensitive filesystem and silently merges files on an insensitive one,
// so each collision is a critical diagnostic.
func CheckCaseCollisions(items []plan.ScaffoldItem) []diag.Heresy {
	byFolded := make(map[string][]string)
	for _, item := range items {
		folded := strings.ToLower(item.Path)
		byFolded[folded] = append(byFolded[folded], item.Path)
	}

	folds := make([]string, 0, len(byFolded))
	for f := range byFolded {
		folds = append(folds, f)
	}
	sort.Strings(folds)

	var out []diag.Heresy
	for _, f := range folds {
		paths := distinct(byFolded[f])
		if len(paths) < 2 {
			continue
		}
		out = append(out, diag.Heresy{
			Key:      "case-collision",
			Severity: diag.Critical,
			Details: fmt.Sprintf("paths %s collide on case-insensitive filesystems",
				strings.Join(paths, " and ")),
			Suggestion: "rename one of the entries so the paths differ by more than letter case",
		})
	}
	return out
}

func distinct(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Assemble packages a resolution into the final ExecutionPlan, merging the
// resolver's diagnostics with those accumulated during the scan and stamping
// purity from the combined set.
func Assemble(res Result, scanDiags []diag.Heresy, env map[string]any, dossier map[string][]string) *plan.ExecutionPlan {
	all := make([]diag.Heresy, 0, len(scanDiags)+len(res.Heresies))
	all = append(all, scanDiags...)
	all = append(all, res.Heresies...)

	pure := true
	for _, h := range all {
		if h.Severity == diag.Critical {
			pure = false
			break
		}
	}

	return &plan.ExecutionPlan{
		Items:       res.Items,
		Commands:    res.Commands,
		Diagnostics: all,
		Environment: env,
		Dossier:     dossier,
		Pure:        pure,
	}
}
