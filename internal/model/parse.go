package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrBadModelFile = errors.New("malformed model file")

// Parse reads the textual model format back into a FeatureModel and checks
// the model invariants. Serialize followed by Parse yields an identical set
// of feature ids, group types, and constraints.
func Parse(r io.Reader) (*FeatureModel, error) {
	m := &FeatureModel{Metadata: make(map[string]string)}

	var (
		section string
		stack   []*FeatureNode
		lineno  int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		lineno++
		line := sc.Text()
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "# inconsistency: "); ok {
			m.Inconsistencies = append(m.Inconsistencies, rest)
			continue
		}

		depth := 0
		for depth < len(line) && line[depth] == '\t' {
			depth++
		}
		body := line[depth:]

		if depth == 0 {
			switch body {
			case "features", "constraints", "metadata":
				section = body
				continue
			default:
				return nil, fmt.Errorf("%w: line %d: unknown section %q", ErrBadModelFile, lineno, body)
			}
		}

		switch section {
		case "features":
			n, err := parseFeatureLine(body)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrBadModelFile, lineno, err)
			}
			switch {
			case depth == 1:
				if m.Root != nil {
					return nil, fmt.Errorf("%w: line %d: multiple roots", ErrBadModelFile, lineno)
				}
				m.Root = n
				stack = []*FeatureNode{n}
			case depth-1 > len(stack):
				return nil, fmt.Errorf("%w: line %d: indent jump", ErrBadModelFile, lineno)
			default:
				stack = stack[:depth-1]
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
				stack = append(stack, n)
			}

		case "constraints":
			c, err := parseConstraintLine(body)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrBadModelFile, lineno, err)
			}
			m.Constraints = append(m.Constraints, c)

		case "metadata":
			id, desc, ok := strings.Cut(body, "\t")
			if !ok {
				return nil, fmt.Errorf("%w: line %d: metadata without value", ErrBadModelFile, lineno)
			}
			m.Metadata[id] = desc

		default:
			return nil, fmt.Errorf("%w: line %d: content before section header", ErrBadModelFile, lineno)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if m.Root == nil {
		return nil, fmt.Errorf("%w: no features", ErrBadModelFile)
	}

	if err := m.BuildIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseFile reads a persisted model from disk.
func ParseFile(path string) (*FeatureModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func parseFeatureLine(s string) (*FeatureNode, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return nil, fmt.Errorf("feature line %q needs id and cardinality", s)
	}
	n := &FeatureNode{ID: fields[0]}

	switch fields[1] {
	case "mandatory":
		n.Mandatory = true
	case "optional":
	default:
		return nil, fmt.Errorf("feature %s: bad cardinality %q", n.ID, fields[1])
	}

	for _, f := range fields[2:] {
		switch {
		case f == "and":
			n.Group = GroupAnd
		case f == "or":
			n.Group = GroupOr
		case f == "alternative":
			n.Group = GroupAlternative
		case f == "repeatable":
			n.Repeatable = true
		case strings.HasPrefix(f, "alias="):
			n.AliasOf = f[len("alias="):]
		case strings.HasPrefix(f, "type="):
			n.ensureAttr().Type = f[len("type="):]
		case strings.HasPrefix(f, "enum="):
			n.ensureAttr().Enum = strings.Split(f[len("enum="):], "|")
		default:
			return nil, fmt.Errorf("feature %s: unknown marker %q", n.ID, f)
		}
	}
	return n, nil
}

func (n *FeatureNode) ensureAttr() *Attribute {
	if n.Attr == nil {
		n.Attr = &Attribute{}
	}
	return n.Attr
}

func parseConstraintLine(s string) (Constraint, error) {
	var c Constraint
	if body, trace, ok := strings.Cut(s, " # "); ok {
		s, c.Trace = body, trace
	}

	op, rest, ok := strings.Cut(s, " ")
	if !ok {
		return c, fmt.Errorf("constraint line %q has no operands", s)
	}

	switch op {
	case "requires", "excludes":
		src, dst, ok := strings.Cut(rest, " ")
		if !ok {
			return c, fmt.Errorf("constraint %q needs two feature ids", s)
		}
		c.Source, c.Target = src, dst
		if op == "requires" {
			c.Kind = ConstraintRequires
		} else {
			c.Kind = ConstraintExcludes
		}
	case "expr":
		e, err := ParseExpr(rest)
		if err != nil {
			return c, err
		}
		c.Kind = ConstraintExpr
		c.Expr = e
	default:
		return c, fmt.Errorf("unknown constraint form %q", op)
	}
	return c, nil
}
