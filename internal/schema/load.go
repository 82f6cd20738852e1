package schema

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// RawDefinitions is the flat mapping from definition name to raw schema node,
// in declaration order. The raw document is JSON, but it is decoded with the
// YAML parser in ordered-map mode: declaration order is what makes the
// serialized model reproducible across runs.
type RawDefinitions struct {
	names []string
	nodes map[string]yaml.MapSlice
}

// Names returns the definition names in declaration order.
func (r *RawDefinitions) Names() []string {
	return r.names
}

// Node returns the raw node for a definition name.
func (r *RawDefinitions) Node(name string) (yaml.MapSlice, bool) {
	n, ok := r.nodes[name]
	return n, ok
}

func (r *RawDefinitions) Len() int {
	return len(r.names)
}

// LoadFile reads a schema definitions document from disk.
func LoadFile(path string) (*RawDefinitions, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Load(bs)
}

// Load parses a definitions document. The document is either a flat mapping
// of definition name to node, or an object with a top-level "definitions"
// mapping (the _definitions.json layout).
func Load(bs []byte) (*RawDefinitions, error) {
	var doc any
	if err := yaml.UnmarshalWithOptions(bs, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSchema, err)
	}

	top, ok := doc.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("%w: top-level node is not a mapping", ErrMalformedSchema)
	}

	if defs, ok := sliceGet(top, "definitions"); ok {
		top, ok = defs.(yaml.MapSlice)
		if !ok {
			return nil, fmt.Errorf("%w: definitions is not a mapping", ErrMalformedSchema)
		}
	}

	raw := &RawDefinitions{nodes: make(map[string]yaml.MapSlice, len(top))}

	for _, item := range top {
		name, ok := item.Key.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string definition name %v", ErrMalformedSchema, item.Key)
		}
		node, ok := item.Value.(yaml.MapSlice)
		if !ok {
			// Definitions that are bare scalars (type aliases) are wrapped
			// so the resolver sees a uniform node shape.
			node = yaml.MapSlice{{Key: "type", Value: fmt.Sprint(item.Value)}}
		}
		if _, dup := raw.nodes[name]; dup {
			return nil, fmt.Errorf("%w: duplicate definition %q", ErrMalformedSchema, name)
		}
		raw.names = append(raw.names, name)
		raw.nodes[name] = node
	}

	return raw, nil
}

func sliceGet(ms yaml.MapSlice, key string) (any, bool) {
	for _, item := range ms {
		if k, ok := item.Key.(string); ok && k == key {
			return item.Value, true
		}
	}
	return nil, false
}

func sliceGetString(ms yaml.MapSlice, key string) (string, bool) {
	v, ok := sliceGet(ms, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
