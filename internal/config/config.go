// Package config defines the run configuration: where the schema
// definitions live, which corpus to scan, how to map keys, and how the
// batch validator behaves. Files are YAML, validated against an embedded
// JSON schema before decoding.
package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"
)

// Root is the top-level configuration structure.
type Root struct {
	Schema   Schema   `json:"schema"`
	Corpus   Corpus   `json:"corpus,omitempty"`
	Mapping  Mapping  `json:"mapping,omitempty"`
	Model    Model    `json:"model,omitempty"`
	Validate Validate `json:"validate,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Schema locates the raw definitions and the root kinds to expand. An
// empty root list expands every top-level definition.
type Schema struct {
	Path  string   `json:"path"`
	Roots []string `json:"roots,omitempty"`
}

// Corpus configures document enumeration. Include and exclude are glob
// patterns over slash-separated file paths.
type Corpus struct {
	Path    string   `json:"path,omitempty"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	CRDs    bool     `json:"crds,omitempty"`
}

// Mapping selects the key mapping: an explicit table file, or derivation
// from the model scoped by glob patterns over key paths.
type Mapping struct {
	Path    string   `json:"path,omitempty"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Model locates the serialized model file.
type Model struct {
	Path string `json:"path,omitempty"`
}

// Validate configures the batch run.
type Validate struct {
	BatchSize  int      `json:"batch_size,omitempty"`
	Workers    int      `json:"workers,omitempty"`
	Budget     Duration `json:"budget,omitempty"`
	Checkpoint string   `json:"checkpoint,omitempty"`
	RunID      string   `json:"run_id,omitempty"`
	Report     string   `json:"report,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler for the Root struct so that
// defaults and pattern checks run on every decode path.
func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal()
}

func (r *Root) unmarshal() error {
	r.Validate.BatchSize = cmp.Or(r.Validate.BatchSize, 300)
	r.Validate.Workers = cmp.Or(r.Validate.Workers, 4)
	r.Validate.Budget = cmp.Or(r.Validate.Budget, Duration(5*time.Second))

	for _, patterns := range [][]string{r.Corpus.Include, r.Corpus.Exclude} {
		if err := checkPatterns(patterns, '/'); err != nil {
			return err
		}
	}
	for _, patterns := range [][]string{r.Mapping.Include, r.Mapping.Exclude} {
		if err := checkPatterns(patterns, '.'); err != nil {
			return err
		}
	}
	return nil
}

func checkPatterns(patterns []string, sep rune) error {
	for _, p := range patterns {
		if _, err := glob.Compile(p, sep); err != nil {
			return fmt.Errorf("bad glob pattern %q: %w", p, err)
		}
	}
	return nil
}

// Parse validates raw config bytes against the embedded schema, then
// decodes them.
func Parse(bs []byte) (*Root, error) {
	if err := Validated(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &root, nil
}

// ParseFile reads and parses a config file.
func ParseFile(filename string) (*Root, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	root, err := Parse(bs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return root, nil
}

// Duration wraps time.Duration so configs can say "5s" or "2m".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	val, err := time.ParseDuration(s)
	*d = Duration(val)
	return err
}

func (d *Duration) UnmarshalYAML(bs []byte) error {
	var s string
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return err
	}
	val, err := time.ParseDuration(s)
	*d = Duration(val)
	return err
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
