package schema

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/caosd-group/kubefm/internal/logging"
)

// Graph is the resolved schema graph for one schema version. It owns every
// Definition in an arena keyed by qualified name and lives for exactly one
// model build; nothing in it is shared between builds.
//
// Definitions are materialized lazily: resolving a reference returns the
// already-materialized Definition if present, otherwise a placeholder that is
// scheduled for expansion on a worklist. The worklist (rather than call
// recursion) is what bounds memory and guarantees termination when
// definitions reference themselves.
type Graph struct {
	raw   *RawDefinitions
	defs  map[string]*Definition
	queue []string

	roots    []*Definition
	aliases  []aliasEdge
	warnings []Warning

	log *logging.Logger
}

// aliasEdge records a definition whose raw node is a bare $ref. The target
// may still be a pending placeholder when the edge is discovered, so the
// copy into the alias happens after the worklist drains.
type aliasEdge struct {
	name   string
	target *Definition
}

// NewGraph creates an empty graph over the raw definitions.
func NewGraph(raw *RawDefinitions, log *logging.Logger) *Graph {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Graph{
		raw:  raw,
		defs: make(map[string]*Definition, raw.Len()),
		log:  log,
	}
}

// Resolve builds the reachable part of the graph starting from the requested
// root set. Roots may be qualified names or unambiguous short names ("Pod").
// An empty root set means every top-level definition. Only definitions
// transitively reachable from the roots are expanded; the rest of the schema
// is dead and never materialized.
func (g *Graph) Resolve(roots []string) error {
	names := roots
	if len(names) == 0 {
		names = g.raw.Names()
	}

	for _, name := range names {
		qualified, ok := g.qualify(name)
		if !ok {
			g.warn(WarnUnresolvedReference, name, "requested root not found")
			continue
		}
		d := g.resolve(qualified, qualified)
		if d != nil {
			g.roots = append(g.roots, d)
		}
	}

	for len(g.queue) > 0 {
		name := g.queue[0]
		g.queue = g.queue[1:]
		g.expand(name)
	}
	g.fillAliases()

	g.log.Debugf("schema graph resolved: %d definitions, %d roots, %d warnings",
		len(g.defs), len(g.roots), len(g.warnings))
	return nil
}

// Roots returns the materialized root definitions in request order.
func (g *Graph) Roots() []*Definition {
	return g.roots
}

// Definition returns an expanded definition from the arena.
func (g *Graph) Definition(name string) (*Definition, bool) {
	d, ok := g.defs[name]
	return d, ok
}

// Len returns the number of materialized definitions.
func (g *Graph) Len() int {
	return len(g.defs)
}

// Warnings returns every recoverable condition hit during resolution.
func (g *Graph) Warnings() []Warning {
	return g.warnings
}

func (g *Graph) warn(kind WarnKind, name, detail string) {
	g.warnings = append(g.warnings, Warning{Kind: kind, Name: name, Detail: detail})
	g.log.Warnf("%s: %s: %s", kind, name, detail)
}

// qualify maps a requested root to a definition name: exact match first,
// then a unique ".<short>" suffix match.
func (g *Graph) qualify(name string) (string, bool) {
	if _, ok := g.raw.Node(name); ok {
		return name, true
	}
	var found string
	for _, candidate := range g.raw.Names() {
		if strings.HasSuffix(candidate, "."+name) {
			if found != "" {
				return "", false // ambiguous
			}
			found = candidate
		}
	}
	return found, found != ""
}

// resolve returns the arena Definition for a reference, creating a pending
// placeholder on first sight. A missing target is recorded as a warning and
// resolves to nil; the caller drops the dependent branch.
func (g *Graph) resolve(owner, ref string) *Definition {
	name := strings.TrimPrefix(ref, "#/definitions/")

	if d, ok := g.defs[name]; ok {
		return d
	}
	if _, ok := g.raw.Node(name); !ok {
		g.warn(WarnUnresolvedReference, owner, ref)
		return nil
	}

	d := &Definition{Name: name, state: statePending}
	g.defs[name] = d
	g.queue = append(g.queue, name)
	return d
}

// expand fills in a pending placeholder from its raw node.
func (g *Graph) expand(name string) {
	d := g.defs[name]
	if d == nil || d.state == stateDone {
		return
	}
	d.state = stateExpanding

	node, _ := g.raw.Node(name)
	filled := g.convert(name, node)
	if filled.Name != "" && filled.Name != name {
		// A bare $ref definition: convert returned the shared arena
		// target, which must not be renamed or marked done here. The
		// alias is filled from the target once the worklist drains.
		g.aliases = append(g.aliases, aliasEdge{name: name, target: filled})
		return
	}
	// The placeholder pointer is what other definitions hold, so the
	// expansion is copied into it rather than replacing it.
	filled.Name = name
	filled.state = stateDone
	*d = *filled
}

// fillAliases copies each alias target's expanded content into the alias
// placeholder, keeping the alias's own name. Aliases of aliases settle over
// repeated passes; a pass without progress means a reference cycle of bare
// $ref nodes, which degrades to opaque definitions with a warning.
func (g *Graph) fillAliases() {
	pending := g.aliases
	for len(pending) > 0 {
		var next []aliasEdge
		for _, e := range pending {
			if e.target.state != stateDone {
				next = append(next, e)
				continue
			}
			d := g.defs[e.name]
			*d = *e.target
			d.Name = e.name
			d.state = stateDone
		}
		if len(next) == len(pending) {
			for _, e := range next {
				g.warn(WarnUnresolvedReference, e.name, "alias cycle")
				d := g.defs[e.name]
				d.Kind = KindUnknown
				d.state = stateDone
			}
			return
		}
		pending = next
	}
}

// Keys the resolver understands. Anything else on a node is vocabulary
// outside the supported operator subset and makes the node opaque.
var supportedKeys = map[string]bool{
	"$ref":        true,
	"description": true,
	"type":        true,
	"properties":  true,
	"required":    true,
	"items":       true,
	"oneOf":       true,
	"anyOf":       true,
	"allOf":       true,
	"enum":        true,
}

var ignoredKeys = map[string]bool{
	"$schema": true,
	"format":  true,
	"default": true,
	"title":   true,
}

// convert translates one raw node into a Definition, resolving references
// through the arena. Inline sub-nodes become anonymous Definitions owned by
// the same graph.
func (g *Graph) convert(owner string, node yaml.MapSlice) *Definition {
	d := &Definition{}
	if desc, ok := sliceGetString(node, "description"); ok {
		d.Description = desc
	}

	if ref, ok := sliceGetString(node, "$ref"); ok {
		target := g.resolve(owner, ref)
		if target == nil {
			d.Kind = KindUnknown
			return d
		}
		if len(node) <= refOnlyLen(node) {
			return target
		}
		// A node that combines $ref with sibling keys folds like allOf.
		d.Kind = KindIntersection
		d.Branches = []*Definition{target}
		return d
	}

	for _, item := range node {
		key, ok := item.Key.(string)
		if !ok {
			continue
		}
		if supportedKeys[key] || ignoredKeys[key] || strings.HasPrefix(key, "x-") {
			continue
		}
		g.warn(WarnUnsupportedConstruct, owner, key)
		d.Kind = KindUnknown
		return d
	}

	if branches, ok := sliceGet(node, "allOf"); ok {
		d.Kind = KindIntersection
		d.Branches = g.convertBranches(owner, branches)
		return d
	}
	if branches, ok := sliceGet(node, "oneOf"); ok {
		d.Kind = KindUnion
		d.Exclusive = true
		d.Branches = g.convertBranches(owner, branches)
		return d
	}
	if branches, ok := sliceGet(node, "anyOf"); ok {
		d.Kind = KindUnion
		d.Branches = g.convertBranches(owner, branches)
		return d
	}

	typ, _ := sliceGetString(node, "type")

	if props, ok := sliceGet(node, "properties"); ok || typ == "object" {
		d.Kind = KindObject
		if ms, ok := props.(yaml.MapSlice); ok {
			for _, item := range ms {
				pname, ok := item.Key.(string)
				if !ok {
					continue
				}
				pnode, ok := item.Value.(yaml.MapSlice)
				if !ok {
					continue
				}
				d.Properties = append(d.Properties, Property{
					Name: pname,
					Def:  g.convert(owner+"."+pname, pnode),
				})
			}
		}
		if req, ok := sliceGet(node, "required"); ok {
			if list, ok := req.([]any); ok {
				for _, r := range list {
					if s, ok := r.(string); ok {
						d.Required = append(d.Required, s)
					}
				}
			}
		}
		return d
	}

	if typ == "array" {
		d.Kind = KindArray
		if items, ok := sliceGet(node, "items"); ok {
			if inode, ok := items.(yaml.MapSlice); ok {
				d.Elem = g.convert(owner+"[]", inode)
			}
		}
		if d.Elem == nil {
			g.warn(WarnUnsupportedConstruct, owner, "array without items")
			d.Kind = KindUnknown
		}
		return d
	}

	// Scalar leaf. Definitions carrying only a description (opaque payload
	// types like RawExtension) land here with an empty type.
	d.Kind = KindScalar
	d.Scalar.Type = typ
	if enum, ok := sliceGet(node, "enum"); ok {
		if list, ok := enum.([]any); ok {
			for _, v := range list {
				d.Scalar.Enum = append(d.Scalar.Enum, fmt.Sprint(v))
			}
		}
	}
	return d
}

func (g *Graph) convertBranches(owner string, v any) []*Definition {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]*Definition, 0, len(list))
	for i, b := range list {
		bnode, ok := b.(yaml.MapSlice)
		if !ok {
			continue
		}
		if d := g.convert(fmt.Sprintf("%s#%d", owner, i), bnode); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// refOnlyLen counts the keys on a $ref node that do not change its meaning.
func refOnlyLen(node yaml.MapSlice) int {
	n := 0
	for _, item := range node {
		if key, ok := item.Key.(string); ok {
			if key == "$ref" || key == "description" || ignoredKeys[key] || strings.HasPrefix(key, "x-") {
				n++
			}
		}
	}
	return n
}
