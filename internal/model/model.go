package model

import (
	"errors"
	"fmt"
	"strings"
)

// GroupType is the cardinality rule over how many children of a feature may
// be selected at once.
type GroupType int

const (
	GroupAnd GroupType = iota // all mandatory members
	GroupOr                   // one or more members
	GroupAlternative          // exactly one member
)

func (g GroupType) String() string {
	switch g {
	case GroupOr:
		return "or"
	case GroupAlternative:
		return "alternative"
	}
	return "and"
}

// Attribute holds the value constraints of a terminal feature. Enumerations
// become a value set here rather than one feature per value.
type Attribute struct {
	Type string
	Enum []string
}

// FeatureNode is one feature of the model. IDs are dotted schema paths,
// stable across runs, and unique within a model. The parent/child relation
// always forms a tree: cycles in the source schema are broken before
// features exist.
type FeatureNode struct {
	ID         string
	Mandatory  bool
	Group      GroupType
	Children   []*FeatureNode
	Attr       *Attribute
	Repeatable bool   // array element; repetition count is a data concern
	AliasOf    string // stand-in for a subtree that appears elsewhere
	Provenance string // originating schema path
}

// ConstraintKind distinguishes the cross-tree constraint forms.
type ConstraintKind int

const (
	ConstraintRequires ConstraintKind = iota
	ConstraintExcludes
	ConstraintExpr
)

// Constraint is one cross-tree rule over feature identifiers. Trace records
// the derivation for diagnostics and is carried through serialization.
type Constraint struct {
	Kind           ConstraintKind
	Source, Target string // requires/excludes
	Expr           *Expr  // propositional form
	Trace          string
}

// ID returns the stable identifier used in validator reports.
func (c Constraint) ID() string {
	switch c.Kind {
	case ConstraintRequires:
		return fmt.Sprintf("requires:%s=>%s", c.Source, c.Target)
	case ConstraintExcludes:
		return fmt.Sprintf("excludes:%s<->%s", c.Source, c.Target)
	}
	return "expr:" + c.Expr.String()
}

// Refs returns every feature id the constraint mentions.
func (c Constraint) Refs() []string {
	if c.Kind == ConstraintExpr {
		return c.Expr.Vars()
	}
	return []string{c.Source, c.Target}
}

// FeatureModel is the assembled variability model: one tree under a
// synthetic root, an ordered constraint list, and an id→description map.
type FeatureModel struct {
	Root            *FeatureNode
	Constraints     []Constraint
	Metadata        map[string]string
	Inconsistencies []string

	index map[string]*FeatureNode
}

var (
	ErrDuplicateFeature  = errors.New("duplicate feature id")
	ErrDanglingReference = errors.New("constraint references unknown feature")
	ErrNotATree          = errors.New("feature nodes do not form a tree")
)

// BuildIndex walks the tree once, checks the model invariants (unique ids,
// tree shape, constraints over existing ids) and prepares id lookup.
func (m *FeatureModel) BuildIndex() error {
	m.index = make(map[string]*FeatureNode)
	seen := make(map[*FeatureNode]bool)

	var walk func(n *FeatureNode) error
	walk = func(n *FeatureNode) error {
		if seen[n] {
			return fmt.Errorf("%w: %s", ErrNotATree, n.ID)
		}
		seen[n] = true
		if _, dup := m.index[n.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFeature, n.ID)
		}
		m.index[n.ID] = n
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(m.Root); err != nil {
		return err
	}

	for _, c := range m.Constraints {
		for _, ref := range c.Refs() {
			if _, ok := m.index[ref]; !ok && !IsSynthetic(ref) {
				return fmt.Errorf("%w: %s in %s", ErrDanglingReference, ref, c.ID())
			}
		}
	}
	return nil
}

// Feature returns the node with the given id, if the model contains it.
func (m *FeatureModel) Feature(id string) (*FeatureNode, bool) {
	n, ok := m.index[id]
	return n, ok
}

// Parent returns the id of a feature's parent, derived from the dotted path.
// The root has no parent.
func (m *FeatureModel) Parent(id string) (string, bool) {
	i := strings.LastIndexByte(id, '.')
	if i < 0 {
		return "", false
	}
	parent := id[:i]
	_, ok := m.index[parent]
	return parent, ok
}

// Len returns the number of features in the model.
func (m *FeatureModel) Len() int {
	return len(m.index)
}

// Walk visits every feature depth-first in model order.
func (m *FeatureModel) Walk(fn func(n *FeatureNode, depth int)) {
	var walk func(n *FeatureNode, depth int)
	walk = func(n *FeatureNode, depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(m.Root, 0)
}

// IsSynthetic reports whether an id is one of the translator's synthetic
// null/empty activations, which are valid against any model that contains
// their base feature.
func IsSynthetic(id string) bool {
	return strings.HasSuffix(id, ".isNull") || strings.HasSuffix(id, ".isEmpty")
}

// SyntheticBase returns the base feature id of a synthetic activation.
func SyntheticBase(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}
