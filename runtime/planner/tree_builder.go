package planner

import (
	"fmt"
	"strings"

	"github.com/novalym/velm-sub008/core/diag"
	"github.com/novalym/velm-sub008/runtime/parser"
)

// frame is one entry of the weaver's scope stack.
type frame struct {
	node   *AstNode
	indent int
}

// logicOpeners are directive names that open a nested scope. Everything else
// (@call, @import, @dialect, pure closers) stays a leaf.
var logicOpeners = map[string]bool{
	"if":    true,
	"elif":  true,
	"else":  true,
	"for":   true,
	"macro": true,
	"task":  true,
	"try":   true,
}

// Weave builds the blueprint tree from the ordered record stream. A record
// that cannot be woven is reported and skipped; no single malformed line
// aborts the tree.
func Weave(records []*parser.LineRecord) (*AstNode, []diag.Heresy) {
	root := NewRoot()
	stack := []frame{{node: root, indent: -1}}
	var heresies []diag.Heresy

	for _, rec := range records {
		if !structural(rec) {
			continue
		}

		// Unwind: pop scopes the current indent has left. Pure closers only
		// unwind; they are never pushed as scopes of their own.
		for len(stack) > 1 && stack[len(stack)-1].indent >= rec.Indent {
			stack = stack[:len(stack)-1]
		}
		if rec.IsCloser() {
			continue
		}

		top := stack[len(stack)-1]
		pushed, err := weaveRecord(top.node, rec)
		if err != nil {
			heresies = append(heresies, diag.Heresy{
				Key:      "unweavable-line",
				Severity: diag.Warning,
				Line:     rec.Line,
				LineText: rec.Raw,
				Details:  err.Error(),
			})
			continue
		}
		if pushed != nil {
			stack = append(stack, frame{node: pushed, indent: rec.Indent})
		}
	}

	return root, heresies
}

// structural reports whether a record carries tree-shaping meaning. Variable
// definitions and command edicts are handled by other passes.
func structural(rec *parser.LineRecord) bool {
	switch rec.Kind {
	case parser.Form, parser.Directive, parser.TraitDef, parser.TraitUse, parser.JinjaConstruct:
		return true
	}
	return false
}

// weaveRecord attaches one record under parent and returns the node to push
// as a new scope, or nil when the record does not open one.
func weaveRecord(parent *AstNode, rec *parser.LineRecord) (*AstNode, error) {
	switch rec.Kind {
	case parser.Directive:
		node := &AstNode{
			Kind:      LogicNode,
			Name:      rec.Directive,
			Directive: rec.Directive,
			Record:    rec,
		}
		parent.Children = append(parent.Children, node)
		if logicOpeners[rec.Directive] {
			return node, nil
		}
		return nil, nil

	case parser.TraitDef:
		node := &AstNode{Kind: LogicNode, Name: rec.TraitName, Directive: "trait", Record: rec}
		parent.Children = append(parent.Children, node)
		return node, nil

	case parser.TraitUse:
		node := &AstNode{Kind: LogicNode, Name: rec.TraitName, Directive: "use", Record: rec}
		parent.Children = append(parent.Children, node)
		return nil, nil

	case parser.JinjaConstruct:
		node := &AstNode{Kind: LogicNode, Name: "jinja", Directive: "jinja", Record: rec}
		parent.Children = append(parent.Children, node)
		if jinjaOpener(rec.Raw) {
			return node, nil
		}
		return nil, nil

	case parser.Form:
		return weaveForm(parent, rec)
	}
	return nil, fmt.Errorf("record kind %s has no structural meaning", rec.Kind)
}

// weaveForm places a file or directory record, synthesizing intermediate
// directory nodes for multi-segment paths so deep and shallow declarations
// interleave into one tree regardless of order.
func weaveForm(parent *AstNode, rec *parser.LineRecord) (*AstNode, error) {
	if rec.Path == "" {
		return nil, fmt.Errorf("structural line has no usable path")
	}

	segments := strings.Split(rec.Path, "/")
	current := parent
	for _, seg := range segments[:len(segments)-1] {
		next := current.child(seg)
		if next == nil {
			next = &AstNode{Kind: FormNode, Name: seg, IsDir: true}
			current.Children = append(current.Children, next)
		}
		if !next.IsDir {
			return nil, fmt.Errorf("path %q passes through %q, which is already a file", rec.Path, seg)
		}
		current = next
	}

	leafName := segments[len(segments)-1]
	leaf := current.child(leafName)
	if leaf == nil {
		leaf = &AstNode{Kind: FormNode, Name: leafName}
		current.Children = append(current.Children, leaf)
	}
	if leaf.Record == nil {
		leaf.Record = rec
	}
	leaf.IsDir = leaf.IsDir || rec.IsDir

	if rec.IsDir {
		return leaf, nil
	}
	return nil, nil
}

// jinjaOpener reports whether a {% ... %} tag opens a nested scope.
func jinjaOpener(raw string) bool {
	inner := strings.TrimSpace(raw)
	inner = strings.TrimPrefix(inner, "{%")
	inner = strings.TrimSpace(strings.TrimSuffix(inner, "%}"))
	for _, opener := range []string{"if ", "for ", "macro ", "block "} {
		if strings.HasPrefix(inner, opener) {
			return true
		}
	}
	return false
}
