package planner

import (
	"fmt"
	"sort"

	"github.com/novalym/velm-sub008/core/plan"
	"github.com/novalym/velm-sub008/core/render"
)

// maxConvergencePasses bounds the fixed-point iteration. A well-formed
// variable set stabilizes in a handful of passes; hitting the ceiling means
// a circular reference.
const maxConvergencePasses = 10

// OuroborosError reports a variable environment that never stabilized:
// somewhere in the set, values reference each other in a cycle.
type OuroborosError struct {
	Passes int
}

func (e *OuroborosError) Error() string {
	return fmt.Sprintf("variable environment did not stabilize after %d passes: circular variable reference", e.Passes)
}

// Converge resolves the two-layer variable environment to a stable fixed
// point. The merged view starts as external overlaid by declared (declared
// always wins); every value still carrying template markers is re-rendered
// against the current merged map until a full pass changes nothing.
//
// A render failure for any single key is a hard convergence failure:
// referenced variables either resolve or the document is diagnosed, never
// silently left half-rendered.
func Converge(external, declared map[string]any, r render.Renderer) (map[string]any, error) {
	merged := make(map[string]any, len(external)+len(declared))
	for k, v := range external {
		merged[k] = v
	}
	for k, v := range declared {
		merged[k] = v
	}

	before, err := plan.EnvironmentFingerprint(merged)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for pass := 0; pass < maxConvergencePasses; pass++ {
		// Keys are visited in sorted order so a pass renders the same way
		// every run; map iteration order must never leak into the result.
		for _, key := range keys {
			s, ok := merged[key].(string)
			if !ok || !render.ContainsExpansion(s) {
				continue
			}
			rendered, err := r.Render(s, merged)
			if err != nil {
				return nil, fmt.Errorf("converge %q: %w", key, err)
			}
			merged[key] = rendered
		}

		after, err := plan.EnvironmentFingerprint(merged)
		if err != nil {
			return nil, err
		}
		if after == before {
			// A stable map that still carries markers is a cycle that
			// happened to reach a textual fixed point (A -> B -> A leaves
			// both values as unexpanded references). That is still an
			// Ouroboros, not a success.
			for _, value := range merged {
				if s, ok := value.(string); ok && render.ContainsExpansion(s) {
					return nil, &OuroborosError{Passes: pass + 1}
				}
			}
			return merged, nil
		}
		before = after
	}

	return nil, &OuroborosError{Passes: maxConvergencePasses}
}
