// Package validate checks a translated feature selection against the
// model's structural rules and cross-tree constraints. The result is not
// one boolean: every violated rule is identified, so a failing document
// is diagnosable without a second run.
package validate

import (
	"strings"

	"github.com/caosd-group/kubefm/internal/logging"
	"github.com/caosd-group/kubefm/internal/model"
	"github.com/caosd-group/kubefm/internal/translate"
)

// Report is the outcome for one document. Violations is ordered (model
// order for structural rules, then constraint order) and free of
// duplicates.
type Report struct {
	Valid      bool
	Violations []string
}

// Validator validates selections against one model. It is read-only over
// the model and safe for concurrent use.
type Validator struct {
	fm  *model.FeatureModel
	log *logging.Logger
}

func New(fm *model.FeatureModel) *Validator {
	return &Validator{fm: fm, log: logging.NewNopLogger()}
}

func (v *Validator) WithLogger(log *logging.Logger) *Validator {
	if log != nil {
		v.log = log
	}
	return v
}

// Validate checks one selection. The model root counts as selected for
// every document; a synthetic null/empty activation is accepted whenever
// its base feature exists.
func (v *Validator) Validate(sel *translate.Selection) Report {
	r := &reporter{}
	selected := func(id string) bool {
		return id == v.fm.Root.ID || sel.Has(id)
	}

	for _, id := range sel.Selected {
		if _, ok := v.fm.Feature(id); ok {
			continue
		}
		if model.IsSynthetic(id) {
			if _, ok := v.fm.Feature(model.SyntheticBase(id)); ok {
				continue
			}
		}
		r.add("unknown:" + id)
	}

	v.fm.Walk(func(n *model.FeatureNode, _ int) {
		if !selected(n.ID) {
			return
		}
		if parent := v.parentID(n.ID); parent != "" && !selected(parent) {
			// An orphaned selection reads as "the parent should have
			// been selected too".
			r.add("mandatory:" + parent)
		}
		if n.AliasOf != "" || len(n.Children) == 0 {
			return
		}
		switch n.Group {
		case model.GroupAnd:
			for _, c := range n.Children {
				if c.Mandatory && !selected(c.ID) {
					r.add("mandatory:" + c.ID)
				}
			}
		case model.GroupOr:
			if countSelected(n.Children, selected) < 1 {
				r.add("group-or:" + n.ID)
			}
		case model.GroupAlternative:
			if countSelected(n.Children, selected) != 1 {
				r.add("group-alternative:" + n.ID)
			}
		}
	})

	for _, c := range v.fm.Constraints {
		if !holds(c, selected) {
			r.add(c.ID())
		}
	}

	if len(r.ids) > 0 {
		v.log.Debugf("%s selection invalid: %s", sel.Kind, strings.Join(r.ids, " "))
	}
	return Report{Valid: len(r.ids) == 0, Violations: r.ids}
}

// parentID resolves a feature's parent, treating the model root as the
// parent of each kind subtree.
func (v *Validator) parentID(id string) string {
	if id == v.fm.Root.ID {
		return ""
	}
	if parent, ok := v.fm.Parent(id); ok {
		return parent
	}
	return v.fm.Root.ID
}

// holds evaluates one constraint, treating absent features as false.
func holds(c model.Constraint, selected func(string) bool) bool {
	switch c.Kind {
	case model.ConstraintRequires:
		return !selected(c.Source) || selected(c.Target)
	case model.ConstraintExcludes:
		return !(selected(c.Source) && selected(c.Target))
	case model.ConstraintExpr:
		return c.Expr.Eval(selected)
	}
	return true
}

func countSelected(children []*model.FeatureNode, selected func(string) bool) int {
	n := 0
	for _, c := range children {
		if selected(c.ID) {
			n++
		}
	}
	return n
}

// reporter accumulates violation ids in first-seen order.
type reporter struct {
	ids  []string
	seen map[string]bool
}

func (r *reporter) add(id string) {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	if r.seen[id] {
		return
	}
	r.seen[id] = true
	r.ids = append(r.ids, id)
}
