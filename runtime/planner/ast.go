// Package planner flattens a scanned blueprint into its execution plan: it
// builds the form/logic tree from the ordered line records, converges the
// variable environment, evaluates control flow, and emits the final item and
// command lists.
package planner

import (
	"fmt"

	"github.com/novalym/velm-sub008/runtime/parser"
)

// NodeKind discriminates the two AST node flavors.
type NodeKind int

const (
	// FormNode is a directory or file, nested by path segment.
	FormNode NodeKind = iota
	// LogicNode is a conditional/loop/macro/task/trait scope.
	LogicNode
)

func (k NodeKind) String() string {
	if k == LogicNode {
		return "Logic"
	}
	return "Form"
}

// AstNode is one node of the blueprint tree. The tree builder exclusively
// owns and mutates the tree; the resolver only traverses it.
type AstNode struct {
	Kind      NodeKind
	Name      string // path segment for form nodes, directive name for logic nodes
	IsDir     bool
	Directive string // "if", "for", "macro", "task", "trait", "call", "use", "try"
	Record    *parser.LineRecord
	Children  []*AstNode
}

// NewRoot returns the synthetic root: a directory form node with no record.
func NewRoot() *AstNode {
	return &AstNode{Kind: FormNode, Name: "", IsDir: true}
}

// child finds a direct child form node by segment name, or nil.
func (n *AstNode) child(name string) *AstNode {
	for _, c := range n.Children {
		if c.Kind == FormNode && c.Name == name {
			return c
		}
	}
	return nil
}

func (n *AstNode) String() string {
	if n.Kind == LogicNode {
		return fmt.Sprintf("Logic(@%s, %d children)", n.Directive, len(n.Children))
	}
	suffix := ""
	if n.IsDir {
		suffix = "/"
	}
	return fmt.Sprintf("Form(%s%s, %d children)", n.Name, suffix, len(n.Children))
}
