package plan

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func samplePlan() *ExecutionPlan {
	return &ExecutionPlan{
		Items: []ScaffoldItem{
			{Path: "src", IsDir: true},
			{Path: "src/main.go", Content: strPtr("package main"), Permissions: "755"},
			{Path: "current", SymlinkTarget: "releases/v1"},
		},
		Commands: []Command{
			{Text: "git init", SourceLine: 9},
			{Text: "test -d src", Assertion: true},
		},
		Environment: map[string]any{"PROJECT": "velm", "PORT": 8080},
		Pure:        true,
	}
}

func TestFingerprintStability(t *testing.T) {
	a, err := samplePlan().Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	b, err := samplePlan().Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if a != b {
		t.Errorf("fingerprints differ for identical plans: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("fingerprint %q has length %d, want 16", a, len(a))
	}
}

func TestFingerprintIgnoresDerivedData(t *testing.T) {
	base, err := samplePlan().Fingerprint()
	if err != nil {
		t.Fatal(err)
	}

	p := samplePlan()
	p.Dossier = map[string][]string{"PROJECT": {"line 2"}}
	p.Pure = false
	got, err := p.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if got != base {
		t.Error("diagnostics, dossier and purity must not participate in the fingerprint")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base, err := samplePlan().Fingerprint()
	if err != nil {
		t.Fatal(err)
	}

	mutations := map[string]func(*ExecutionPlan){
		"item content":   func(p *ExecutionPlan) { p.Items[1].Content = strPtr("package cmd") },
		"item path":      func(p *ExecutionPlan) { p.Items[1].Path = "src/app.go" },
		"permissions":    func(p *ExecutionPlan) { p.Items[1].Permissions = "644" },
		"mutation op":    func(p *ExecutionPlan) { p.Items[1].Mutation = Append },
		"symlink target": func(p *ExecutionPlan) { p.Items[2].SymlinkTarget = "releases/v2" },
		"command text":   func(p *ExecutionPlan) { p.Commands[0].Text = "git init --bare" },
		"environment":    func(p *ExecutionPlan) { p.Environment["PORT"] = 9090 },
		"item order":     func(p *ExecutionPlan) { p.Items[0], p.Items[1] = p.Items[1], p.Items[0] },
	}

	for name, mutate := range mutations {
		p := samplePlan()
		mutate(p)
		got, err := p.Fingerprint()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got == base {
			t.Errorf("%s: fingerprint unchanged after mutation", name)
		}
	}
}

func TestFingerprintEmptyContentDiffersFromAbsent(t *testing.T) {
	absent := &ExecutionPlan{Items: []ScaffoldItem{{Path: "f"}}}
	empty := &ExecutionPlan{Items: []ScaffoldItem{{Path: "f", Content: strPtr("")}}}

	a, err := absent.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	b, err := empty.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("a declared empty body and no body are different plans")
	}
}

func TestEnvironmentFingerprintOrderIndependent(t *testing.T) {
	// Maps with identical contents built in different insertion orders must
	// hash identically; the fixed-point check in convergence depends on it.
	a := map[string]any{}
	for _, k := range []string{"A", "B", "C"} {
		a[k] = k + "-value"
	}
	b := map[string]any{}
	for _, k := range []string{"C", "A", "B"} {
		b[k] = k + "-value"
	}

	fa, err := EnvironmentFingerprint(a)
	if err != nil {
		t.Fatal(err)
	}
	fb, err := EnvironmentFingerprint(b)
	if err != nil {
		t.Fatal(err)
	}
	if fa != fb {
		t.Errorf("fingerprints differ for equal environments: %s vs %s", fa, fb)
	}

	b["C"] = "changed"
	fc, err := EnvironmentFingerprint(b)
	if err != nil {
		t.Fatal(err)
	}
	if fc == fa {
		t.Error("a changed value must change the fingerprint")
	}
}
