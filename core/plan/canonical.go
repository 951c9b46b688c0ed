package plan

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Canonical encoding exists so that two semantically identical plans (or
// variable environments) always hash to the same bytes. Map iteration order
// and JSON float formatting are both unsuitable for this, so we sort keys
// ourselves and encode with CBOR core-deterministic mode.

var canonicalEnc cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("plan: canonical CBOR mode: %v", err))
	}
	canonicalEnc = mode
}

// canonicalPlan is the intermediate form for deterministic hashing. Only
// semantically meaningful fields participate; diagnostics and the dossier are
// derived data and excluded.
type canonicalPlan struct {
	Version  uint8            `cbor:"1,keyasint"`
	Items    []canonicalItem  `cbor:"2,keyasint"`
	Commands []canonicalCmd   `cbor:"3,keyasint"`
	Env      []canonicalEntry `cbor:"4,keyasint"`
}

type canonicalItem struct {
	Path     string `cbor:"1,keyasint"`
	IsDir    bool   `cbor:"2,keyasint"`
	Content  string `cbor:"3,keyasint"`
	HasBody  bool   `cbor:"4,keyasint"`
	Mutation int    `cbor:"5,keyasint"`
	Perms    string `cbor:"6,keyasint"`
	Hash     string `cbor:"7,keyasint"`
	Symlink  string `cbor:"8,keyasint"`
	Seed     string `cbor:"9,keyasint"`
}

type canonicalCmd struct {
	Text      string   `cbor:"1,keyasint"`
	Stdin     []string `cbor:"2,keyasint"`
	Undo      []string `cbor:"3,keyasint"`
	OnFailure []string `cbor:"4,keyasint"`
	Assertion bool     `cbor:"5,keyasint"`
}

type canonicalEntry struct {
	Key   string `cbor:"1,keyasint"`
	Value string `cbor:"2,keyasint"`
}

const canonicalVersion = 1

// Fingerprint returns a stable 16-hex-char digest of the plan's semantic
// content. Two plans with the same items, commands and environment always
// share a fingerprint regardless of how they were produced.
func (ep *ExecutionPlan) Fingerprint() (string, error) {
	cp := canonicalPlan{
		Version: canonicalVersion,
		Env:     canonicalEntries(ep.Environment),
	}
	for _, item := range ep.Items {
		ci := canonicalItem{
			Path:     item.Path,
			IsDir:    item.IsDir,
			Mutation: int(item.Mutation),
			Perms:    item.Permissions,
			Symlink:  item.SymlinkTarget,
			Seed:     item.SeedPath,
		}
		if item.Content != nil {
			ci.Content = *item.Content
			ci.HasBody = true
		}
		if item.ExpectedHash != nil {
			ci.Hash = item.ExpectedHash.String()
		}
		cp.Items = append(cp.Items, ci)
	}
	for _, cmd := range ep.Commands {
		cp.Commands = append(cp.Commands, canonicalCmd{
			Text:      cmd.Text,
			Stdin:     cmd.Stdin,
			Undo:      cmd.Undo,
			OnFailure: cmd.OnFailure,
			Assertion: cmd.Assertion,
		})
	}

	raw, err := canonicalEnc.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("plan fingerprint: %w", err)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum)[:16], nil
}

// EnvironmentFingerprint hashes a variable environment in canonical form.
// The convergence engine compares fingerprints across passes to detect a
// stable fixed point.
func EnvironmentFingerprint(env map[string]any) (string, error) {
	raw, err := canonicalEnc.Marshal(canonicalEntries(env))
	if err != nil {
		return "", fmt.Errorf("environment fingerprint: %w", err)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum)[:16], nil
}

func canonicalEntries(env map[string]any) []canonicalEntry {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]canonicalEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, canonicalEntry{Key: k, Value: fmt.Sprintf("%v", env[k])})
	}
	return entries
}
