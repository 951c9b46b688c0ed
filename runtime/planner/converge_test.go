package planner

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/novalym/velm-sub008/core/render"
)

func TestConvergeChain(t *testing.T) {
	declared := map[string]any{
		"NAME":     "velm",
		"GREETING": "hello {{NAME}}",
		"BANNER":   "== {{GREETING}} ==",
	}

	got, err := Converge(nil, declared, render.NewTemplateRenderer())
	if err != nil {
		t.Fatalf("Converge() error = %v", err)
	}

	want := map[string]any{
		"NAME":     "velm",
		"GREETING": "hello velm",
		"BANNER":   "== hello velm ==",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Converge() mismatch (-want +got):\n%s", diff)
	}
}

func TestConvergeIdempotence(t *testing.T) {
	declared := map[string]any{
		"A": "base",
		"B": "{{A}}/sub",
		"C": "{{B}}/leaf",
	}
	r := render.NewTemplateRenderer()

	first, err := Converge(nil, declared, r)
	if err != nil {
		t.Fatalf("first Converge() error = %v", err)
	}
	second, err := Converge(nil, first, r)
	if err != nil {
		t.Fatalf("second Converge() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("converged output is not a fixed point (-first +second):\n%s", diff)
	}
}

func TestConvergeDeclaredWins(t *testing.T) {
	external := map[string]any{"env": "prod", "region": "eu"}
	declared := map[string]any{"env": "dev"}

	got, err := Converge(external, declared, render.NewTemplateRenderer())
	if err != nil {
		t.Fatalf("Converge() error = %v", err)
	}
	if got["env"] != "dev" {
		t.Errorf("env = %v, declared layer must shadow external", got["env"])
	}
	if got["region"] != "eu" {
		t.Errorf("region = %v, external-only values must survive", got["region"])
	}
}

func TestConvergeCycleTerminates(t *testing.T) {
	declared := map[string]any{
		"A": "{{B}}",
		"B": "{{A}}",
	}

	_, err := Converge(nil, declared, render.NewTemplateRenderer())
	if err == nil {
		t.Fatal("cyclic variables must fail convergence")
	}
	var ouro *OuroborosError
	if !errors.As(err, &ouro) {
		t.Errorf("error = %v, want OuroborosError", err)
	}
}

func TestConvergeUndefinedReferenceFails(t *testing.T) {
	declared := map[string]any{"A": "{{MISSING}}"}

	_, err := Converge(nil, declared, render.NewTemplateRenderer())
	if err == nil {
		t.Fatal("undefined reference must be a hard convergence failure")
	}
	var ouro *OuroborosError
	if errors.As(err, &ouro) {
		t.Errorf("undefined reference misreported as a cycle: %v", err)
	}
}

func TestConvergePassthroughTagsAreNotCycles(t *testing.T) {
	// {% %} tags belong to the downstream rendering engine; a stable value
	// carrying one is a fixed point, not an unexpanded reference.
	declared := map[string]any{
		"NAME":   "velm",
		"HEADER": "{% block head %}",
		"TITLE":  "{{NAME}} docs",
	}

	got, err := Converge(nil, declared, render.NewTemplateRenderer())
	if err != nil {
		t.Fatalf("Converge() error = %v", err)
	}
	if got["HEADER"] != "{% block head %}" {
		t.Errorf("HEADER = %v, passthrough tags must survive untouched", got["HEADER"])
	}
	if got["TITLE"] != "velm docs" {
		t.Errorf("TITLE = %v", got["TITLE"])
	}
}

func TestConvergeNonStringValuesPassThrough(t *testing.T) {
	declared := map[string]any{
		"PORT":  8080,
		"FLAGS": []any{"a", "b"},
		"HOST":  "0.0.0.0:{{PORT}}",
	}

	got, err := Converge(nil, declared, render.NewTemplateRenderer())
	if err != nil {
		t.Fatalf("Converge() error = %v", err)
	}
	if got["HOST"] != "0.0.0.0:8080" {
		t.Errorf("HOST = %v", got["HOST"])
	}
	if got["PORT"] != 8080 {
		t.Errorf("PORT = %v, non-string values must pass through untouched", got["PORT"])
	}
}
