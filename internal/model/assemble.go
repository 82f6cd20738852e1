package model

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// minSharedNodes is the smallest subtree the assembler will unify. Tiny
// leaves (every string-typed terminal looks identical) are not worth an
// alias indirection.
const minSharedNodes = 3

// Assemble merges the per-kind feature trees into one model under a
// synthetic root. A real-world document instantiates exactly one kind, but
// the or-group keeps the model able to represent a library of kinds.
//
// Structurally identical subtrees reachable from multiple kinds are unified:
// the first occurrence keeps its expansion, later occurrences collapse into
// an alias node, and constraints over the collapsed ids are rewritten onto
// the canonical ones.
func Assemble(rootID string, kinds []*FeatureNode, constraints []Constraint, metadata map[string]string) (*FeatureModel, error) {
	root := &FeatureNode{
		ID:        rootID,
		Mandatory: true,
		Group:     GroupOr,
	}
	for _, k := range kinds {
		k.Mandatory = true
		root.Children = append(root.Children, k)
	}

	m := &FeatureModel{
		Root:        root,
		Constraints: constraints,
		Metadata:    metadata,
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}

	remap := unifyShared(root)
	if len(remap) > 0 {
		m.Constraints = remapConstraints(m.Constraints, remap)
		pruneMetadata(m.Metadata, remap)
	}

	m.Constraints, m.Inconsistencies = flagConflicts(m.Constraints)

	if err := m.BuildIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

// unifyShared walks the merged tree, hashes every subtree's shape, and
// collapses repeats into alias nodes. It returns a prefix remap from each
// collapsed subtree root to its canonical counterpart.
func unifyShared(root *FeatureNode) map[string]string {
	firstByHash := make(map[uint64]string)
	remap := make(map[string]string)

	var walk func(n *FeatureNode, depth int) uint64
	walk = func(n *FeatureNode, depth int) uint64 {
		childHashes := make([]uint64, 0, len(n.Children))
		for _, c := range n.Children {
			childHashes = append(childHashes, walk(c, depth+1))
		}

		h := structuralHash(n, childHashes)
		// Kind roots (depth 1) stay distinct even when identical: the
		// model must keep one child per kind.
		if depth >= 2 && countNodes(n) >= minSharedNodes && n.AliasOf == "" {
			if canonical, ok := firstByHash[h]; ok && !strings.HasPrefix(n.ID, canonical) {
				remap[n.ID] = canonical
				n.Children = nil
				n.AliasOf = canonical
				return structuralHash(n, nil)
			}
			firstByHash[h] = n.ID
		}
		return h
	}
	walk(root, 0)
	return remap
}

// structuralHash covers the local shape of a node: relative name,
// cardinality, group, attributes and the hashes of its children. Absolute
// ids are excluded so the same definition expanded under two kinds hashes
// equal.
func structuralHash(n *FeatureNode, childHashes []uint64) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%t|%d|%t|%s", lastSegment(n.ID), n.Mandatory, n.Group, n.Repeatable, n.AliasOf)
	if n.Attr != nil {
		fmt.Fprintf(h, "|%s|%v", n.Attr.Type, n.Attr.Enum)
	}
	for _, c := range childHashes {
		fmt.Fprintf(h, "|%d", c)
	}
	return h.Sum64()
}

func countNodes(n *FeatureNode) int {
	total := 1
	for _, c := range n.Children {
		total += countNodes(c)
	}
	return total
}

func lastSegment(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// remapConstraints rewrites constraint references under collapsed subtrees
// onto their canonical prefixes, then drops exact duplicates the rewrite
// may have produced. Collapsed subtrees nest, so a reference can match
// several prefixes: the longest one is the innermost collapse and the only
// rewrite that lands on a feature the canonical subtree still carries.
// Each step can expose another matching prefix (the canonical's own inner
// collapses), so the rewrite repeats until no prefix applies; every step
// moves to an earlier canonical, which bounds the loop.
func remapConstraints(constraints []Constraint, remap map[string]string) []Constraint {
	rewrite := func(id string) string {
		for {
			best := ""
			for prefix := range remap {
				if id != prefix && !strings.HasPrefix(id, prefix+".") {
					continue
				}
				if len(prefix) > len(best) {
					best = prefix
				}
			}
			if best == "" {
				return id
			}
			id = remap[best] + id[len(best):]
		}
	}

	out := constraints[:0]
	seen := make(map[string]bool, len(constraints))
	for _, c := range constraints {
		switch c.Kind {
		case ConstraintRequires, ConstraintExcludes:
			c.Source = rewrite(c.Source)
			c.Target = rewrite(c.Target)
		case ConstraintExpr:
			c.Expr = rewriteExpr(c.Expr, rewrite)
		}
		id := c.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out
}

func rewriteExpr(e *Expr, rewrite func(string) string) *Expr {
	if e.Op == OpVar {
		return Var(rewrite(e.Var))
	}
	args := make([]*Expr, len(e.Args))
	for i, a := range e.Args {
		args[i] = rewriteExpr(a, rewrite)
	}
	return &Expr{Op: e.Op, Args: args}
}

func pruneMetadata(metadata map[string]string, remap map[string]string) {
	for id := range metadata {
		for prefix := range remap {
			if strings.HasPrefix(id, prefix+".") {
				delete(metadata, id)
				break
			}
		}
	}
}

// flagConflicts keeps every derived constraint but records each feature
// pair that carries both a requires and an excludes. Source precedence is
// not well-defined, so no priority order is invented here.
func flagConflicts(constraints []Constraint) ([]Constraint, []string) {
	type pair struct{ a, b string }
	norm := func(a, b string) pair {
		if a > b {
			a, b = b, a
		}
		return pair{a, b}
	}

	excludes := make(map[pair]bool)
	for _, c := range constraints {
		if c.Kind == ConstraintExcludes {
			excludes[norm(c.Source, c.Target)] = true
		}
	}

	var inconsistencies []string
	seen := make(map[pair]bool)
	for _, c := range constraints {
		if c.Kind != ConstraintRequires {
			continue
		}
		p := norm(c.Source, c.Target)
		if excludes[p] && !seen[p] {
			seen[p] = true
			inconsistencies = append(inconsistencies,
				fmt.Sprintf("both requires and excludes derived for %s / %s", p.a, p.b))
		}
	}
	return constraints, inconsistencies
}
