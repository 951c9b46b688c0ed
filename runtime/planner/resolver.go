package planner

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/novalym/velm-sub008/core/diag"
	"github.com/novalym/velm-sub008/core/plan"
	"github.com/novalym/velm-sub008/core/render"
	"github.com/novalym/velm-sub008/runtime/parser"
)

// Result is the flattened output of resolving a blueprint tree against a
// converged environment.
type Result struct {
	Items    []plan.ScaffoldItem
	Commands []plan.Command
	Heresies []diag.Heresy
}

// definition is a registered macro, task or trait body with the environment
// captured at its definition site.
type definition struct {
	node     *AstNode
	env      map[string]any
	defaults map[string]string
	kind     string // "macro", "task" or "trait"
}

// Resolver walks the tree read-only and emits the final plan content. A fresh
// Resolver is built per Resolve call, so nothing is shared across documents.
type Resolver struct {
	renderer render.Renderer
	defs     map[string]definition
	items    []plan.ScaffoldItem
	heresies []diag.Heresy
	depth    int
}

// maxCallDepth bounds macro-in-macro expansion so a self-invoking macro
// cannot recurse forever.
const maxCallDepth = 16

// Resolve evaluates directive nodes against env, expands loops, inlines
// macros and traits, discards non-taken branches, and emits the ordered item
// list. Commands gathered during the scan are rendered and deduplicated
// here. Any directive evaluation failure becomes a diagnostic and skips the
// offending subtree; resolution itself never fails.
func Resolve(root *AstNode, env map[string]any, commands []plan.Command, r render.Renderer) Result {
	res := &Resolver{
		renderer: r,
		defs:     make(map[string]definition),
	}
	res.resolveChildren(root.Children, env, "")
	resolved := res.resolveCommands(commands, env)
	res.heresies = append(res.heresies, CheckCaseCollisions(res.items)...)

	return Result{
		Items:    res.items,
		Commands: resolved,
		Heresies: res.heresies,
	}
}

func (r *Resolver) reportf(key string, sev diag.Severity, rec *parser.LineRecord, format string, args ...any) {
	h := diag.Heresy{Key: key, Severity: sev, Details: fmt.Sprintf(format, args...)}
	if rec != nil {
		h.Line = rec.Line
		h.LineText = rec.Raw
	}
	r.heresies = append(r.heresies, h)
}

// resolveChildren walks a sibling list. Conditional chains (@if/@elif/@else)
// are grouped here because the chain is a property of the sibling order, not
// of any single node.
func (r *Resolver) resolveChildren(nodes []*AstNode, env map[string]any, prefix string) {
	for i := 0; i < len(nodes); i++ {
		node := nodes[i]

		if node.Kind == LogicNode && node.Directive == "if" {
			chain := []*AstNode{node}
			for i+1 < len(nodes) && isBranchContinuation(nodes[i+1]) {
				i++
				chain = append(chain, nodes[i])
			}
			r.resolveConditional(chain, env, prefix)
			continue
		}
		if isBranchContinuation(node) {
			r.reportf("orphaned-branch", diag.Warning, node.Record,
				"@%s has no preceding @if", node.Directive)
			continue
		}

		r.resolveNode(node, env, prefix)
	}
}

func isBranchContinuation(n *AstNode) bool {
	return n.Kind == LogicNode && (n.Directive == "elif" || n.Directive == "else")
}

// resolveConditional evaluates an @if/@elif/@else chain and flattens at most
// one taken branch. Non-taken subtrees are never visited, so a conditionally
// absent file genuinely never enters the plan.
func (r *Resolver) resolveConditional(chain []*AstNode, env map[string]any, prefix string) {
	for _, branch := range chain {
		if branch.Directive == "else" {
			r.resolveChildren(branch.Children, env, prefix)
			return
		}
		taken, err := r.evalCondition(branch.Record.DirectiveArg, env)
		if err != nil {
			r.reportf("condition-error", diag.Critical, branch.Record, "%v", err)
			return
		}
		if taken {
			r.resolveChildren(branch.Children, env, prefix)
			return
		}
	}
}

func (r *Resolver) resolveNode(node *AstNode, env map[string]any, prefix string) {
	if node.Kind == FormNode {
		r.resolveForm(node, env, prefix)
		return
	}

	switch node.Directive {
	case "for":
		r.resolveFor(node, env, prefix)

	case "macro", "task":
		name, defaults := parser.ParseCall(node.Record.DirectiveArg)
		r.register(name, node, env, defaults, node.Directive)

	case "trait":
		r.register(node.Record.TraitName, node, env, node.Record.TraitArgs, "trait")

	case "call", "use":
		r.resolveInvocation(node, env, prefix)

	case "try":
		r.resolveTry(node, env, prefix)

	case "jinja":
		// Line-level template constructs belong to the downstream rendering
		// engine; the compiler carries their subtree through unconditionally.
		r.resolveChildren(node.Children, env, prefix)

	case "import", "dialect":
		// Handled during the scan; nothing left to do here.

	default:
		r.reportf("unknown-directive", diag.Warning, node.Record,
			"@%s is not a recognized directive", node.Directive)
	}
}

func (r *Resolver) register(name string, node *AstNode, env map[string]any, defaults map[string]string, kind string) {
	if name == "" {
		r.reportf("anonymous-definition", diag.Warning, node.Record, "@%s requires a name", kind)
		return
	}
	if _, exists := r.defs[name]; exists {
		// First definition wins; a redefinition is reported, not applied.
		r.reportf("redefined-"+kind, diag.Warning, node.Record, "%s %q is already defined", kind, name)
		return
	}
	captured := make(map[string]any, len(env))
	for k, v := range env {
		captured[k] = v
	}
	r.defs[name] = definition{node: node, env: captured, defaults: defaults, kind: kind}
}

// resolveInvocation materializes a registered macro/task/trait body with
// call-site arguments overlaid on the captured environment.
func (r *Resolver) resolveInvocation(node *AstNode, env map[string]any, prefix string) {
	var name string
	var args map[string]string
	if node.Directive == "use" {
		name, args = node.Record.TraitName, node.Record.TraitArgs
	} else {
		name, args = parser.ParseCall(node.Record.DirectiveArg)
	}

	def, ok := r.defs[name]
	if !ok {
		r.reportf("unknown-invocation", diag.Critical, node.Record,
			"%q is not a defined macro, task or trait%s", name, r.suggestDefinition(name))
		return
	}

	if r.depth >= maxCallDepth {
		r.reportf("invocation-depth", diag.Critical, node.Record,
			"expanding %q exceeds the invocation depth ceiling of %d", name, maxCallDepth)
		return
	}

	derived := make(map[string]any, len(def.env)+len(def.defaults)+len(args))
	for k, v := range def.env {
		derived[k] = v
	}
	for k, v := range def.defaults {
		if v != "" {
			derived[k] = v
		}
	}
	for k, v := range args {
		derived[k] = v
	}

	r.depth++
	r.resolveChildren(def.node.Children, derived, prefix)
	r.depth--
}

func (r *Resolver) suggestDefinition(name string) string {
	known := make([]string, 0, len(r.defs))
	for k := range r.defs {
		known = append(known, k)
	}
	sort.Strings(known)
	ranks := fuzzy.RankFindFold(name, known)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return fmt.Sprintf("; did you mean %q?", ranks[0].Target)
}

// resolveFor expands a loop body once per iteration value, with the loop
// variable bound in a derived environment.
func (r *Resolver) resolveFor(node *AstNode, env map[string]any, prefix string) {
	varName, listExpr, found := strings.Cut(node.Record.DirectiveArg, " in ")
	if !found {
		r.reportf("malformed-for", diag.Critical, node.Record,
			"@for needs the form '@for name in values'")
		return
	}
	varName = strings.TrimSpace(varName)

	values, err := r.iterationValues(strings.TrimSpace(listExpr), env)
	if err != nil {
		r.reportf("condition-error", diag.Critical, node.Record, "%v", err)
		return
	}

	for _, value := range values {
		derived := make(map[string]any, len(env)+1)
		for k, v := range env {
			derived[k] = v
		}
		derived[varName] = value
		r.resolveChildren(node.Children, derived, prefix)
	}
}

// iterationValues turns a @for list expression into concrete values: a
// list-valued variable iterates directly, anything else renders and splits
// on commas.
func (r *Resolver) iterationValues(expr string, env map[string]any) ([]any, error) {
	if v, ok := env[expr]; ok {
		switch list := v.(type) {
		case []any:
			return list, nil
		case []string:
			out := make([]any, len(list))
			for i, s := range list {
				out[i] = s
			}
			return out, nil
		}
	}

	rendered := expr
	if render.ContainsMarkers(expr) {
		var err error
		rendered, err = r.renderer.Render(expr, env)
		if err != nil {
			return nil, err
		}
	}

	var out []any
	for _, part := range strings.Split(rendered, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

// resolveTry contains its subtree's failures: criticals raised inside are
// downgraded so one failing branch does not poison the whole document.
func (r *Resolver) resolveTry(node *AstNode, env map[string]any, prefix string) {
	mark := len(r.heresies)
	r.resolveChildren(node.Children, env, prefix)
	for i := mark; i < len(r.heresies); i++ {
		if r.heresies[i].Severity == diag.Critical {
			r.heresies[i].Severity = diag.Warning
			r.heresies[i].Suggestion = "contained by @try"
		}
	}
}

// resolveForm renders any templated fragments still present in the node's
// path/content fields and emits a ScaffoldItem. Synthesized intermediate
// directories (no record) emit nothing of their own.
func (r *Resolver) resolveForm(node *AstNode, env map[string]any, prefix string) {
	name, err := r.renderField(node.Name, env)
	if err != nil {
		r.reportf("unresolved-template", diag.Critical, node.Record, "path: %v", err)
		return
	}
	full := path.Join(prefix, name)

	if node.Record != nil {
		item, err := r.buildItem(node, full, env)
		if err != nil {
			r.reportf("unresolved-template", diag.Critical, node.Record, "%v", err)
			return
		}
		r.items = append(r.items, item)
	}

	if node.IsDir {
		r.resolveChildren(node.Children, env, full)
	}
}

func (r *Resolver) buildItem(node *AstNode, fullPath string, env map[string]any) (plan.ScaffoldItem, error) {
	rec := node.Record
	item := plan.ScaffoldItem{
		Path:          fullPath,
		IsDir:         node.IsDir,
		Permissions:   rec.Permissions,
		ExpectedHash:  rec.ExpectedHash,
		SymlinkTarget: rec.SymlinkTarget,
		SeedPath:      rec.SeedPath,
		Selector:      rec.Selector,
		Origin:        rec.Line,
	}
	if rec.Mutation != nil {
		item.Mutation = *rec.Mutation
	}

	if rec.Content != nil {
		text, err := r.renderField(rec.Content.Text(), env)
		if err != nil {
			return item, fmt.Errorf("content: %w", err)
		}
		item.Content = &text
	}
	if item.SymlinkTarget != "" {
		target, err := r.renderField(item.SymlinkTarget, env)
		if err != nil {
			return item, fmt.Errorf("symlink target: %w", err)
		}
		item.SymlinkTarget = target
	}
	return item, nil
}

func (r *Resolver) renderField(s string, env map[string]any) (string, error) {
	if !render.ContainsMarkers(s) {
		return s, nil
	}
	return r.renderer.Render(s, env)
}

// resolveCommands renders command text against the converged environment and
// drops duplicates. The first occurrence of a signature wins; later ones are
// discarded so a command never executes twice for one plan.
func (r *Resolver) resolveCommands(commands []plan.Command, env map[string]any) []plan.Command {
	seen := make(map[string]bool, len(commands))
	out := make([]plan.Command, 0, len(commands))

	for _, cmd := range commands {
		text, err := r.renderField(cmd.Text, env)
		if err != nil {
			r.reportf("unresolved-template", diag.Critical, nil,
				"command at line %d: %v", cmd.SourceLine, err)
			continue
		}
		cmd.Text = text

		if len(cmd.Stdin) > 0 {
			stdin := make([]string, len(cmd.Stdin))
			var renderErr error
			for i, line := range cmd.Stdin {
				if stdin[i], renderErr = r.renderField(line, env); renderErr != nil {
					break
				}
			}
			if renderErr != nil {
				r.reportf("unresolved-template", diag.Critical, nil,
					"stdin for command at line %d: %v", cmd.SourceLine, renderErr)
				continue
			}
			cmd.Stdin = stdin
		}

		sig := commandSignature(cmd.Text)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, cmd)
	}
	return out
}

// commandSignature folds case and collapses whitespace runs so cosmetic
// variants of one command deduplicate together.
func commandSignature(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// evalCondition evaluates a directive condition against the environment.
// The expression is rendered first, then reduced: optional leading negation,
// equality/inequality comparison, otherwise truthiness of a single term.
func (r *Resolver) evalCondition(expr string, env map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, fmt.Errorf("empty condition")
	}

	if render.ContainsMarkers(expr) {
		rendered, err := r.renderer.Render(expr, env)
		if err != nil {
			return false, err
		}
		expr = strings.TrimSpace(rendered)
	}

	if strings.HasPrefix(expr, "!") && !strings.HasPrefix(expr, "!=") {
		inner, err := r.evalCondition(strings.TrimSpace(expr[1:]), env)
		return !inner, err
	}

	if left, right, found := strings.Cut(expr, "!="); found {
		return r.operand(left, env) != r.operand(right, env), nil
	}
	if left, right, found := strings.Cut(expr, "=="); found {
		return r.operand(left, env) == r.operand(right, env), nil
	}

	return truthy(r.operand(expr, env)), nil
}

// operand resolves one comparison side: quoted text is literal, a bare name
// prefers its environment value, anything else is its own literal.
func (r *Resolver) operand(s string, env map[string]any) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if v, ok := env[s]; ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0", "no", "off":
		return false
	}
	return true
}
