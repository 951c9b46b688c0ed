package planner

import (
	"testing"

	"github.com/novalym/velm-sub008/core/diag"
	"github.com/novalym/velm-sub008/runtime/lexer"
	"github.com/novalym/velm-sub008/runtime/parser"
)

// weaveSource scans lines through the real classifier/deconstructor and
// weaves the resulting records, the same path the orchestrator drives.
func weaveSource(t *testing.T, lines ...string) (*AstNode, []diag.Heresy) {
	t.Helper()
	var records []*parser.LineRecord
	for i, l := range lines {
		rec, _ := parser.DeconstructLine(l, i+1, lexer.DialectForm)
		records = append(records, rec)
	}
	return Weave(records)
}

func findChild(n *AstNode, name string) *AstNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestWeaveDeepPathSynthesis(t *testing.T) {
	root, heresies := weaveSource(t, `src/api/v1/main.py :: "print()"`)
	if len(heresies) != 0 {
		t.Fatalf("unexpected heresies: %v", heresies)
	}

	src := findChild(root, "src")
	if src == nil || !src.IsDir || src.Record != nil {
		t.Fatalf("src = %+v, want synthesized directory without record", src)
	}
	api := findChild(src, "api")
	if api == nil || !api.IsDir {
		t.Fatalf("api = %+v, want synthesized directory", api)
	}
	v1 := findChild(api, "v1")
	if v1 == nil || !v1.IsDir {
		t.Fatalf("v1 = %+v, want synthesized directory", v1)
	}
	leaf := findChild(v1, "main.py")
	if leaf == nil || leaf.IsDir || leaf.Record == nil {
		t.Fatalf("main.py = %+v, want recorded file leaf", leaf)
	}
	if len(root.Children) != 1 {
		t.Errorf("root has %d children, want 1", len(root.Children))
	}
}

func TestWeaveDeepAndShallowInterleave(t *testing.T) {
	// The deep path arrives first; the later shallow declaration must reuse
	// the synthesized directory, not create a sibling.
	root, _ := weaveSource(t,
		`src/util/helpers.go :: "package util"`,
		`src/`,
		`src/main.go :: "package main"`,
	)

	if len(root.Children) != 1 {
		t.Fatalf("root has %d children, want 1 (src)", len(root.Children))
	}
	src := findChild(root, "src")
	if src.Record == nil {
		t.Error("the explicit src/ declaration should attach its record to the synthesized node")
	}
	if findChild(src, "util") == nil || findChild(src, "main.go") == nil {
		t.Errorf("src children = %v, want util and main.go", src.Children)
	}
}

func TestWeaveIndentScoping(t *testing.T) {
	root, _ := weaveSource(t,
		`app/`,
		`    main.go :: "x"`,
		`lib/`,
	)

	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}
	app := findChild(root, "app")
	if findChild(app, "main.go") == nil {
		t.Errorf("main.go should nest under app/, got %v", app.Children)
	}
	if findChild(root, "lib") == nil {
		t.Error("lib/ should unwind back to the root scope")
	}
}

func TestWeaveLogicScopes(t *testing.T) {
	root, _ := weaveSource(t,
		`@if DEBUG`,
		`    debug.log :: ""`,
		`@else`,
		`    release.log :: ""`,
		`@end`,
		`always.txt :: ""`,
	)

	if len(root.Children) != 3 {
		t.Fatalf("root children = %v, want if, else, always.txt", root.Children)
	}
	ifNode := root.Children[0]
	if ifNode.Kind != LogicNode || ifNode.Directive != "if" || len(ifNode.Children) != 1 {
		t.Errorf("if node = %+v", ifNode)
	}
	elseNode := root.Children[1]
	if elseNode.Directive != "else" || len(elseNode.Children) != 1 {
		t.Errorf("else node = %+v", elseNode)
	}
	if root.Children[2].Name != "always.txt" {
		t.Errorf("trailing form = %+v", root.Children[2])
	}
}

func TestWeaveClosersNeverPush(t *testing.T) {
	root, _ := weaveSource(t,
		`@for x in xs`,
		`    item-{{x}} :: ""`,
		`@end`,
		`{% endfor %}`,
		`after.txt :: ""`,
	)
	if findChild(root, "after.txt") == nil {
		t.Errorf("after.txt should be a root child, got %v", root.Children)
	}
	for _, c := range root.Children {
		if c.Directive == "end" {
			t.Error("@end must not appear as a tree node")
		}
	}
}

func TestWeaveFailureIsolation(t *testing.T) {
	root, heresies := weaveSource(t,
		`good.txt :: "a"`,
		`:: "no path at all"`,
		`also-good.txt :: "b"`,
	)

	if len(heresies) != 1 {
		t.Fatalf("heresies = %v, want exactly one", heresies)
	}
	if heresies[0].Key != "unweavable-line" {
		t.Errorf("heresy key = %q, want unweavable-line", heresies[0].Key)
	}
	if heresies[0].Severity != diag.Warning {
		t.Errorf("severity = %v, want Warning", heresies[0].Severity)
	}
	if findChild(root, "good.txt") == nil || findChild(root, "also-good.txt") == nil {
		t.Errorf("surviving records should still weave, got %v", root.Children)
	}
}

func TestWeaveFileBlocksDeepPath(t *testing.T) {
	_, heresies := weaveSource(t,
		`config :: "i am a file"`,
		`config/extra.txt :: "x"`,
	)
	if len(heresies) != 1 {
		t.Fatalf("heresies = %v, want one for the path through a file", heresies)
	}
}
