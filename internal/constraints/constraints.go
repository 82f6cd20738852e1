// Package constraints derives cross-tree constraints from synthesized
// feature trees. Each rule is a pure function over one tree; the deriver
// runs a fixed, ordered rule list and unions the outputs, so the emitted
// constraint order is stable for identical input.
package constraints

import (
	"strings"

	"github.com/caosd-group/kubefm/internal/logging"
	"github.com/caosd-group/kubefm/internal/model"
)

type rule struct {
	name string
	fn   func(*model.FeatureNode) []model.Constraint
}

// Deriver derives constraints from feature trees.
type Deriver struct {
	rules []rule
	log   *logging.Logger
}

func New(log *logging.Logger) *Deriver {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Deriver{
		rules: []rule{
			{"branch-requires", ruleBranchRequires},
			{"union-excludes", ruleUnionExcludes},
			{"discriminator", ruleDiscriminator},
		},
		log: log,
	}
}

// Derive runs every rule over every tree. Duplicate constraints (the same
// rule firing on structurally shared subtrees) collapse to the first
// occurrence.
func (d *Deriver) Derive(trees []*model.FeatureNode) []model.Constraint {
	var out []model.Constraint
	seen := make(map[string]bool)
	for _, r := range d.rules {
		for _, tree := range trees {
			for _, c := range r.fn(tree) {
				id := c.ID()
				if seen[id] {
					continue
				}
				seen[id] = true
				out = append(out, c)
			}
		}
		d.log.Debugf("constraint rule %s: %d total", r.name, len(out))
	}
	return out
}

// ruleBranchRequires emits requires constraints for properties that are
// mandatory only within one composition branch: selecting the branch
// requires its mandatory members, but the members are not mandatory for
// the enclosing feature as a whole.
func ruleBranchRequires(tree *model.FeatureNode) []model.Constraint {
	var out []model.Constraint
	walk(tree, func(n *model.FeatureNode) {
		if n.Group != model.GroupOr && n.Group != model.GroupAlternative {
			return
		}
		for _, branch := range n.Children {
			for _, member := range branch.Children {
				if !member.Mandatory {
					continue
				}
				out = append(out, model.Constraint{
					Kind:   model.ConstraintRequires,
					Source: branch.ID,
					Target: member.ID,
					Trace:  "required within branch " + branch.ID,
				})
			}
		}
	})
	return out
}

// ruleUnionExcludes makes exclusive-union branches pairwise mutually
// exclusive. The group cardinality already says "exactly one child of the
// group"; the explicit excludes pairs survive subtree unification and
// remain checkable after features are remapped to aliases.
func ruleUnionExcludes(tree *model.FeatureNode) []model.Constraint {
	var out []model.Constraint
	walk(tree, func(n *model.FeatureNode) {
		if n.Group != model.GroupAlternative {
			return
		}
		for i := 0; i < len(n.Children); i++ {
			for j := i + 1; j < len(n.Children); j++ {
				out = append(out, model.Constraint{
					Kind:   model.ConstraintExcludes,
					Source: n.Children[i].ID,
					Target: n.Children[j].ID,
					Trace:  "exclusive branches of " + n.ID,
				})
			}
		}
	})
	return out
}

// ruleDiscriminator recognizes the discriminated-union idiom: an
// enumerated sibling whose values name the other children of the same
// and-group. Selecting the discriminator implies selecting at least one
// of the named variants.
func ruleDiscriminator(tree *model.FeatureNode) []model.Constraint {
	var out []model.Constraint
	walk(tree, func(n *model.FeatureNode) {
		if n.Group != model.GroupAnd || len(n.Children) < 2 {
			return
		}
		siblings := make(map[string]string, len(n.Children))
		for _, c := range n.Children {
			siblings[strings.ToLower(lastSegment(c.ID))] = c.ID
		}
		for _, c := range n.Children {
			if c.Attr == nil || len(c.Attr.Enum) < 2 {
				continue
			}
			var variants []string
			for _, v := range c.Attr.Enum {
				id, ok := siblings[strings.ToLower(v)]
				if !ok || id == c.ID {
					variants = nil
					break
				}
				variants = append(variants, id)
			}
			if len(variants) == 0 {
				continue
			}
			out = append(out, model.Constraint{
				Kind:  model.ConstraintExpr,
				Expr:  model.Implies(model.Var(c.ID), model.OrAll(variants)),
				Trace: "discriminator " + c.ID,
			})
		}
	})
	return out
}

func walk(n *model.FeatureNode, fn func(*model.FeatureNode)) {
	fn(n)
	for _, c := range n.Children {
		walk(c, fn)
	}
}

func lastSegment(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}
	return id
}
