// Package synth walks the resolved schema graph and emits one feature tree
// per requested top-level kind. The mapping from schema operators to feature
// groups is a fixed rule table over the definition kind; nothing here
// inspects raw schema nodes.
package synth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/caosd-group/kubefm/internal/logging"
	"github.com/caosd-group/kubefm/internal/model"
	"github.com/caosd-group/kubefm/internal/schema"
)

// Synthesizer turns schema definitions into feature trees. It never mutates
// the graph, so independent kinds can be synthesized on separate workers
// over the same graph.
type Synthesizer struct {
	graph   *schema.Graph
	workers int
	log     *logging.Logger
}

func New(graph *schema.Graph, log *logging.Logger) *Synthesizer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Synthesizer{graph: graph, workers: 1, log: log}
}

// WithWorkers bounds the number of kinds synthesized concurrently.
func (s *Synthesizer) WithWorkers(n int) *Synthesizer {
	if n > 0 {
		s.workers = n
	}
	return s
}

// Result is the output of synthesizing one kind.
type Result struct {
	Tree     *model.FeatureNode
	Metadata map[string]string
}

// SynthesizeAll synthesizes every graph root. Output order matches root
// order regardless of worker interleaving; metadata maps are merged after
// the join so workers share nothing mutable.
func (s *Synthesizer) SynthesizeAll(ctx context.Context) ([]*model.FeatureNode, map[string]string, error) {
	roots := s.graph.Roots()
	results := make([]Result, len(roots))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, root := range roots {
		g.Go(func() error {
			results[i] = s.Kind(root)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	trees := make([]*model.FeatureNode, 0, len(results))
	metadata := make(map[string]string)
	for _, r := range results {
		trees = append(trees, r.Tree)
		for id, desc := range r.Metadata {
			metadata[id] = desc
		}
	}
	return trees, metadata, nil
}

// Kind synthesizes the feature tree of a single top-level kind.
func (s *Synthesizer) Kind(root *schema.Definition) Result {
	w := &walker{
		visited: make(map[string]string),
		meta:    make(map[string]string),
	}
	tree := w.expand(root, EscapeSegment(root.ShortName()), true)
	s.log.Debugf("synthesized kind %s: %d features", root.ShortName(), countFeatures(tree))
	return Result{Tree: tree, Metadata: w.meta}
}

// walker holds the per-kind synthesis state. The visited map is what breaks
// schema cycles: a definition reached again (directly self-referential or
// through a longer loop) becomes an alias leaf instead of a second
// expansion, so every feature appears exactly once.
type walker struct {
	visited map[string]string
	meta    map[string]string
}

func (w *walker) expand(def *schema.Definition, id string, mandatory bool) *model.FeatureNode {
	n := &model.FeatureNode{
		ID:         id,
		Mandatory:  mandatory,
		Provenance: def.Name,
	}
	w.describe(id, def.Description)

	if def.Name != "" {
		if first, ok := w.visited[def.Name]; ok {
			n.AliasOf = first
			return n
		}
		w.visited[def.Name] = id
	}

	w.fill(n, def)
	return n
}

// fill applies the structural mapping rule for the definition kind to an
// already-allocated node.
func (w *walker) fill(n *model.FeatureNode, def *schema.Definition) {
	switch def.Kind {
	case schema.KindObject:
		n.Group = model.GroupAnd
		for _, p := range def.Properties {
			if p.Def == nil {
				// Unresolved reference: the branch was dropped with a
				// warning during graph resolution.
				continue
			}
			childID := n.ID + "." + EscapeSegment(p.Name)
			n.Children = append(n.Children, w.expand(p.Def, childID, def.IsRequired(p.Name)))
		}

	case schema.KindUnion:
		if def.Exclusive {
			n.Group = model.GroupAlternative
		} else {
			n.Group = model.GroupOr
		}
		for i, branch := range def.Branches {
			childID := n.ID + "." + w.branchName(n, branch, i)
			n.Children = append(n.Children, w.expand(branch, childID, false))
		}

	case schema.KindIntersection:
		// Flattened merge: branch members fold into the enclosing
		// and-group rather than forming a new group.
		n.Group = model.GroupAnd
		for i, branch := range def.Branches {
			w.merge(n, branch, i)
		}

	case schema.KindArray:
		// One feature stands for the repeated element; how many times it
		// repeats is a data value, not a feature per instance.
		n.Repeatable = true
		if def.Elem != nil {
			w.describe(n.ID, def.Elem.Description)
			if def.Elem.Name != "" {
				if first, ok := w.visited[def.Elem.Name]; ok {
					n.AliasOf = first
					return
				}
				w.visited[def.Elem.Name] = n.ID
			}
			w.fill(n, def.Elem)
		}

	case schema.KindScalar:
		if def.Scalar.Type != "" || len(def.Scalar.Enum) > 0 {
			n.Attr = &model.Attribute{
				Type: def.Scalar.Type,
				Enum: sanitizeEnum(def.Scalar.Enum),
			}
		}

	case schema.KindUnknown:
		// Opaque node for vocabulary outside the supported subset.
		n.Attr = &model.Attribute{Type: "unknown"}
	}
}

// merge folds an intersection branch into the enclosing node.
func (w *walker) merge(n *model.FeatureNode, branch *schema.Definition, idx int) {
	if branch.Name != "" {
		if first, ok := w.visited[branch.Name]; ok {
			n.Children = append(n.Children, &model.FeatureNode{
				ID:         n.ID + "." + EscapeSegment(branch.ShortName()),
				AliasOf:    first,
				Provenance: branch.Name,
			})
			return
		}
		w.visited[branch.Name] = n.ID
	}

	switch branch.Kind {
	case schema.KindObject:
		w.describe(n.ID, branch.Description)
		for _, p := range branch.Properties {
			if p.Def == nil {
				continue
			}
			childID := n.ID + "." + EscapeSegment(p.Name)
			n.Children = append(n.Children, w.expand(p.Def, childID, branch.IsRequired(p.Name)))
		}
	case schema.KindIntersection:
		for i, b := range branch.Branches {
			w.merge(n, b, i)
		}
	default:
		childID := n.ID + "." + w.branchName(n, branch, idx)
		n.Children = append(n.Children, w.expand(branch, childID, false))
	}
}

// branchName names a synthetic sub-feature for a composition branch:
// the referenced definition's short name when there is one, an "asType"
// marker for bare scalar alternatives, or a positional fallback.
func (w *walker) branchName(n *model.FeatureNode, branch *schema.Definition, idx int) string {
	var name string
	switch {
	case branch.Name != "":
		name = EscapeSegment(branch.ShortName())
	case branch.Kind == schema.KindScalar && branch.Scalar.Type != "":
		name = "as" + title(branch.Scalar.Type)
	default:
		name = fmt.Sprintf("branch%d", idx)
	}

	for _, c := range n.Children {
		if c.ID == n.ID+"."+name {
			return fmt.Sprintf("%s%d", name, idx)
		}
	}
	return name
}

func (w *walker) describe(id, desc string) {
	if desc == "" {
		return
	}
	if _, ok := w.meta[id]; ok {
		return // first-visited description wins
	}
	w.meta[id] = SanitizeDescription(desc)
}

func countFeatures(n *model.FeatureNode) int {
	total := 1
	for _, c := range n.Children {
		total += countFeatures(c)
	}
	return total
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
