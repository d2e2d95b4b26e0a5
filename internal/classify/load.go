package classify

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed policy.cue
var policySchema string

// LoadPolicy reads a policy file. The format follows the extension:
// .yaml/.yml are decoded strictly (unknown fields are rejected), .cue is
// unified with the #Policy schema and must be concrete.
//
// Optional sections left out of the file (session_keep, caches) take the
// DefaultPolicy values.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	var p Policy
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		p, err = parseYAML(data)
	case ".cue":
		p, err = parseCUE(path, data)
	default:
		return Policy{}, fmt.Errorf("unsupported policy format %q: must be .yaml, .yml or .cue", ext)
	}
	if err != nil {
		return Policy{}, err
	}

	return withDefaults(p), nil
}

// Load reads a policy file and builds a validated Classifier from it.
func Load(path string) (*Classifier, error) {
	p, err := LoadPolicy(path)
	if err != nil {
		return nil, err
	}
	return New(p)
}

func parseYAML(data []byte) (Policy, error) {
	var p Policy
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return p, nil
}

func parseCUE(path string, data []byte) (Policy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(policySchema, cue.Filename("policy.cue"))
	if err := schema.Err(); err != nil {
		return Policy{}, fmt.Errorf("building policy schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return Policy{}, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Policy")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Policy{}, fmt.Errorf("policy does not match schema: %w", err)
	}

	var p Policy
	if err := unified.Decode(&p); err != nil {
		return Policy{}, fmt.Errorf("decoding CUE policy: %w", err)
	}
	return p, nil
}
