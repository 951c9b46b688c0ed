// Package contract validates declared-variable values against their type
// signatures. Signatures are small and closed: primitive names, enum(...),
// pattern(...), and semver. Primitive checks compile to JSON Schema so the
// error messages stay consistent with schema tooling.
package contract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/semver"
)

// Validator checks values against blueprint type signatures. Safe for
// concurrent use; compiled schemas are cached per signature.
type Validator struct {
	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

// NewValidator returns an empty validator.
func NewValidator() *Validator {
	return &Validator{cache: make(map[string]*jsonschema.Schema)}
}

var primitiveSchemas = map[string]string{
	"string":  `{"type": "string"}`,
	"int":     `{"type": "integer"}`,
	"integer": `{"type": "integer"}`,
	"number":  `{"type": "number"}`,
	"bool":    `{"type": "boolean"}`,
	"boolean": `{"type": "boolean"}`,
	"list":    `{"type": "array"}`,
	"map":     `{"type": "object"}`,
}

var (
	enumSig    = regexp.MustCompile(`^enum\((.+)\)$`)
	patternSig = regexp.MustCompile(`^pattern\((.+)\)$`)
)

// Validate checks value against the signature, returning a human-readable
// message on mismatch. field names the variable being checked and appears in
// every message.
func (v *Validator) Validate(signature string, value any, field string) error {
	sig := strings.TrimSpace(signature)

	switch {
	case sig == "semver":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: semver requires a string, got %T", field, value)
		}
		version := s
		if !strings.HasPrefix(version, "v") {
			version = "v" + version
		}
		if !semver.IsValid(version) {
			return fmt.Errorf("%s: %q is not a valid semantic version", field, s)
		}
		return nil

	case enumSig.MatchString(sig):
		options := strings.Split(enumSig.FindStringSubmatch(sig)[1], "|")
		got := fmt.Sprintf("%v", value)
		for _, opt := range options {
			if strings.TrimSpace(opt) == got {
				return nil
			}
		}
		return fmt.Errorf("%s: %q is not one of %s", field, got, strings.Join(options, ", "))

	case patternSig.MatchString(sig):
		expr := patternSig.FindStringSubmatch(sig)[1]
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("%s: invalid pattern signature %q: %w", field, expr, err)
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: pattern requires a string, got %T", field, value)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("%s: %q does not match pattern %s", field, s, expr)
		}
		return nil
	}

	schemaJSON, ok := primitiveSchemas[sig]
	if !ok {
		return fmt.Errorf("%s: unknown type signature %q", field, sig)
	}

	schema, err := v.compiled(sig, schemaJSON)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}

	// Round-trip through JSON so Go-native values (int, []string, ...) arrive
	// in the shapes the schema library validates.
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: value not representable: %w", field, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("%s: value %v does not satisfy %s", field, value, sig)
	}
	return nil
}

func (v *Validator) compiled(sig, schemaJSON string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.cache[sig]; ok {
		return s, nil
	}
	s, err := jsonschema.CompileString(sig+".json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", sig, err)
	}
	v.cache[sig] = s
	return s, nil
}
