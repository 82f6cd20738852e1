// Package extcheck validates corpus documents directly against the raw
// JSON schema definitions, bypassing the feature model. Running both
// checkers over one corpus and merging their summary rows shows where the
// model disagrees with the schema it was built from.
package extcheck

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/caosd-group/kubefm/internal/corpus"
	"github.com/caosd-group/kubefm/internal/logging"
	"github.com/caosd-group/kubefm/internal/service"
)

const resourceURL = "schema.json"

// Checker compiles one schema per document kind on first use and caches
// it; the corpus usually holds many documents of few kinds.
type Checker struct {
	compiler *jsonschema.Compiler
	names    []string
	log      *logging.Logger

	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// New loads the definitions file and prepares the compiler. The file is
// the same one the model pipeline consumes.
func New(defsPath string) (*Checker, error) {
	f, err := os.Open(defsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := jsonschema.UnmarshalJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", defsPath, err)
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: top level is not an object", defsPath)
	}
	defs, ok := root["definitions"].(map[string]any)
	if !ok {
		// A bare definition map without the wrapper.
		defs = root
		doc = map[string]any{"definitions": root}
	}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, err
	}

	return &Checker{
		compiler: compiler,
		names:    names,
		log:      logging.NewNopLogger(),
		compiled: make(map[string]*jsonschema.Schema),
	}, nil
}

func (c *Checker) WithLogger(log *logging.Logger) *Checker {
	if log != nil {
		c.log = log
	}
	return c
}

// Run checks every document and returns summary rows under the
// "jsonschema" source label. A kind with no definition yields a "skipped"
// row rather than an error.
func (c *Checker) Run(ctx context.Context, docs []corpus.Document) ([]service.SummaryRow, error) {
	rows := make([]service.SummaryRow, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		rows = append(rows, c.one(doc))
	}
	return rows, nil
}

func (c *Checker) one(doc corpus.Document) service.SummaryRow {
	start := time.Now()
	row := service.SummaryRow{
		Filename: doc.Path,
		Source:   "jsonschema",
	}

	sch, err := c.schemaFor(doc.Kind, doc.APIVersion)
	switch {
	case err != nil:
		c.log.Warnf("%s: compile %s: %v", doc.ID(), doc.Kind, err)
		row.Result = "error"
	case sch == nil:
		row.Result = "skipped"
	default:
		row.Result = c.check(sch, doc)
	}
	row.Elapsed = time.Since(start)
	return row
}

func (c *Checker) check(sch *jsonschema.Schema, doc corpus.Document) string {
	jsonBytes, err := yaml.YAMLToJSON(doc.Bytes)
	if err != nil {
		c.log.Warnf("%s: %v", doc.ID(), err)
		return "error"
	}
	value, err := jsonschema.UnmarshalJSON(strings.NewReader(string(jsonBytes)))
	if err != nil {
		c.log.Warnf("%s: %v", doc.ID(), err)
		return "error"
	}
	if err := sch.Validate(value); err != nil {
		c.log.Debugf("%s: %v", doc.ID(), err)
		return "invalid"
	}
	return "valid"
}

// schemaFor resolves a kind (plus API version hint) to a compiled schema.
// A nil schema with nil error means the definitions do not cover the kind.
func (c *Checker) schemaFor(kind, apiVersion string) (*jsonschema.Schema, error) {
	name, ok := c.qualify(kind, apiVersion)
	if !ok {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if sch, ok := c.compiled[name]; ok {
		return sch, nil
	}
	sch, err := c.compiler.Compile(resourceURL + "#/definitions/" + name)
	if err != nil {
		return nil, err
	}
	c.compiled[name] = sch
	return sch, nil
}

// qualify finds the definition for a kind: candidates share the ".<Kind>"
// suffix, and the document's API version narrows a multi-version schema
// to the right one.
func (c *Checker) qualify(kind, apiVersion string) (string, bool) {
	var candidates []string
	for _, name := range c.names {
		if name == kind || strings.HasSuffix(name, "."+kind) {
			candidates = append(candidates, name)
		}
	}
	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0], true
	}

	version := apiVersion
	if i := strings.IndexByte(version, '/'); i >= 0 {
		version = version[i+1:]
	}
	for _, name := range candidates {
		if strings.Contains(name, "."+version+".") {
			return name, true
		}
	}
	return candidates[0], true
}
