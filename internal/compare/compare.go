// Package compare diffs two feature models. The output is a changelog:
// what a schema version bump added, removed, or reshaped, in terms of
// features and constraints rather than raw schema text.
package compare

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/caosd-group/kubefm/internal/model"
)

// Diff is the changelog between two models. All lists are sorted.
type Diff struct {
	FeaturesAdded      []string
	FeaturesRemoved    []string
	FeaturesChanged    []string
	ConstraintsAdded   []string
	ConstraintsRemoved []string
}

// Empty reports whether the two models are equivalent.
func (d Diff) Empty() bool {
	return len(d.FeaturesAdded) == 0 && len(d.FeaturesRemoved) == 0 &&
		len(d.FeaturesChanged) == 0 &&
		len(d.ConstraintsAdded) == 0 && len(d.ConstraintsRemoved) == 0
}

// Models compares old against new. A feature counts as changed when its
// cardinality, group type, repetition, attribute, or alias target moved;
// identifiers do the matching, so a renamed feature is a remove plus an
// add.
func Models(oldModel, newModel *model.FeatureModel) Diff {
	var d Diff

	oldFeatures := featureIndex(oldModel)
	newFeatures := featureIndex(newModel)

	for id, n := range newFeatures {
		o, ok := oldFeatures[id]
		if !ok {
			d.FeaturesAdded = append(d.FeaturesAdded, id)
			continue
		}
		if change := describeChange(o, n); change != "" {
			d.FeaturesChanged = append(d.FeaturesChanged, id+": "+change)
		}
	}
	for id := range oldFeatures {
		if _, ok := newFeatures[id]; !ok {
			d.FeaturesRemoved = append(d.FeaturesRemoved, id)
		}
	}

	oldConstraints := constraintSet(oldModel)
	newConstraints := constraintSet(newModel)
	for id := range newConstraints {
		if !oldConstraints[id] {
			d.ConstraintsAdded = append(d.ConstraintsAdded, id)
		}
	}
	for id := range oldConstraints {
		if !newConstraints[id] {
			d.ConstraintsRemoved = append(d.ConstraintsRemoved, id)
		}
	}

	sort.Strings(d.FeaturesAdded)
	sort.Strings(d.FeaturesRemoved)
	sort.Strings(d.FeaturesChanged)
	sort.Strings(d.ConstraintsAdded)
	sort.Strings(d.ConstraintsRemoved)
	return d
}

func featureIndex(m *model.FeatureModel) map[string]*model.FeatureNode {
	index := make(map[string]*model.FeatureNode, m.Len())
	m.Walk(func(n *model.FeatureNode, _ int) {
		index[n.ID] = n
	})
	return index
}

func describeChange(o, n *model.FeatureNode) string {
	var changes []string
	if o.Mandatory != n.Mandatory {
		changes = append(changes, cardinality(o.Mandatory)+" -> "+cardinality(n.Mandatory))
	}
	if len(o.Children) > 0 && len(n.Children) > 0 && o.Group != n.Group {
		changes = append(changes, "group "+o.Group.String()+" -> "+n.Group.String())
	}
	if o.Repeatable != n.Repeatable {
		changes = append(changes, fmt.Sprintf("repeatable %v -> %v", o.Repeatable, n.Repeatable))
	}
	if o.AliasOf != n.AliasOf {
		changes = append(changes, "alias "+orNone(o.AliasOf)+" -> "+orNone(n.AliasOf))
	}
	if attrString(o.Attr) != attrString(n.Attr) {
		changes = append(changes, "attr "+orNone(attrString(o.Attr))+" -> "+orNone(attrString(n.Attr)))
	}
	return strings.Join(changes, ", ")
}

// constraintSet normalizes constraints for comparison: excludes is
// symmetric, so its operands are ordered before the ids are compared.
func constraintSet(m *model.FeatureModel) map[string]bool {
	set := make(map[string]bool, len(m.Constraints))
	for _, c := range m.Constraints {
		if c.Kind == model.ConstraintExcludes && c.Target < c.Source {
			c.Source, c.Target = c.Target, c.Source
		}
		set[c.ID()] = true
	}
	return set
}

func cardinality(mandatory bool) string {
	if mandatory {
		return "mandatory"
	}
	return "optional"
}

func attrString(a *model.Attribute) string {
	if a == nil {
		return ""
	}
	if len(a.Enum) == 0 {
		return a.Type
	}
	return a.Type + " enum=" + strings.Join(a.Enum, "|")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// WriteMarkdown renders the changelog for inclusion in release notes.
func (d Diff) WriteMarkdown(w io.Writer, oldName, newName string) error {
	if _, err := fmt.Fprintf(w, "# Model changes: %s -> %s\n", oldName, newName); err != nil {
		return err
	}
	if d.Empty() {
		_, err := fmt.Fprintln(w, "\nNo changes.")
		return err
	}
	sections := []struct {
		title string
		items []string
	}{
		{"Features added", d.FeaturesAdded},
		{"Features removed", d.FeaturesRemoved},
		{"Features changed", d.FeaturesChanged},
		{"Constraints added", d.ConstraintsAdded},
		{"Constraints removed", d.ConstraintsRemoved},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n## %s (%d)\n\n", s.title, len(s.items)); err != nil {
			return err
		}
		for _, item := range s.items {
			if _, err := fmt.Fprintf(w, "- `%s`\n", item); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteCSV emits one row per changed item, machine-readable counterpart
// of the markdown changelog.
func (d Diff) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"change", "item"}); err != nil {
		return err
	}
	groups := []struct {
		change string
		items  []string
	}{
		{"feature-added", d.FeaturesAdded},
		{"feature-removed", d.FeaturesRemoved},
		{"feature-changed", d.FeaturesChanged},
		{"constraint-added", d.ConstraintsAdded},
		{"constraint-removed", d.ConstraintsRemoved},
	}
	for _, g := range groups {
		for _, item := range g.items {
			if err := cw.Write([]string{g.change, item}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render prints the changelog as a summary table.
func (d Diff) Render(w io.Writer) error {
	t := tablewriter.NewTable(w)
	t.Header("CHANGE", "COUNT")
	rows := [][]string{
		{"features added", fmt.Sprint(len(d.FeaturesAdded))},
		{"features removed", fmt.Sprint(len(d.FeaturesRemoved))},
		{"features changed", fmt.Sprint(len(d.FeaturesChanged))},
		{"constraints added", fmt.Sprint(len(d.ConstraintsAdded))},
		{"constraints removed", fmt.Sprint(len(d.ConstraintsRemoved))},
	}
	for _, row := range rows {
		if err := t.Append(row); err != nil {
			return err
		}
	}
	return t.Render()
}
