package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// The model file is a line-oriented text format with three blocks:
//
//	features
//		<id> mandatory|optional [and|or|alternative] [repeatable]
//		     [alias=<id>] [type=<t>] [enum=v1|v2|...]
//			<children, one tab deeper>
//	constraints
//		requires <a> <b> [# trace]
//		excludes <a> <b> [# trace]
//		expr <expression> [# trace]
//	metadata
//		<id>\t<description>
//
// Rendering is a fixed depth-first traversal in schema-declaration order
// with metadata sorted by id, so an unchanged schema serializes to
// byte-identical text. That property is what makes model diffs across
// schema versions meaningful.

// Serialize writes the deterministic textual form of the model.
func Serialize(m *FeatureModel, w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "features")
	m.Walk(func(n *FeatureNode, depth int) {
		bw.WriteString(strings.Repeat("\t", depth+1))
		bw.WriteString(featureLine(n))
		bw.WriteByte('\n')
	})

	fmt.Fprintln(bw, "constraints")
	for _, c := range m.Constraints {
		bw.WriteByte('\t')
		bw.WriteString(constraintLine(c))
		bw.WriteByte('\n')
	}

	fmt.Fprintln(bw, "metadata")
	ids := make([]string, 0, len(m.Metadata))
	for id := range m.Metadata {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(bw, "\t%s\t%s\n", id, m.Metadata[id])
	}

	for _, inc := range m.Inconsistencies {
		fmt.Fprintf(bw, "# inconsistency: %s\n", inc)
	}

	return bw.Flush()
}

// SerializeToFile writes the model to a file, replacing existing content.
func SerializeToFile(m *FeatureModel, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Serialize(m, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func featureLine(n *FeatureNode) string {
	var sb strings.Builder
	sb.WriteString(n.ID)
	if n.Mandatory {
		sb.WriteString(" mandatory")
	} else {
		sb.WriteString(" optional")
	}
	if len(n.Children) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(n.Group.String())
	}
	if n.Repeatable {
		sb.WriteString(" repeatable")
	}
	if n.AliasOf != "" {
		sb.WriteString(" alias=")
		sb.WriteString(n.AliasOf)
	}
	if n.Attr != nil {
		if n.Attr.Type != "" {
			sb.WriteString(" type=")
			sb.WriteString(n.Attr.Type)
		}
		if len(n.Attr.Enum) > 0 {
			sb.WriteString(" enum=")
			sb.WriteString(strings.Join(n.Attr.Enum, "|"))
		}
	}
	return sb.String()
}

func constraintLine(c Constraint) string {
	var body string
	switch c.Kind {
	case ConstraintRequires:
		body = fmt.Sprintf("requires %s %s", c.Source, c.Target)
	case ConstraintExcludes:
		body = fmt.Sprintf("excludes %s %s", c.Source, c.Target)
	default:
		body = "expr " + c.Expr.String()
	}
	if c.Trace != "" {
		body += " # " + c.Trace
	}
	return body
}
