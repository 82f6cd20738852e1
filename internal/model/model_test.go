package model

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func testModel(t *testing.T) *FeatureModel {
	t.Helper()
	m := &FeatureModel{
		Root: &FeatureNode{
			ID:        "root",
			Mandatory: true,
			Group:     GroupOr,
			Children: []*FeatureNode{
				{
					ID:        "Pod",
					Mandatory: true,
					Group:     GroupAnd,
					Children: []*FeatureNode{
						{
							ID:        "Pod.spec",
							Mandatory: true,
							Group:     GroupAnd,
							Children: []*FeatureNode{
								{ID: "Pod.spec.hostname", Attr: &Attribute{Type: "string"}},
								{
									ID:    "Pod.spec.restartPolicy",
									Attr:  &Attribute{Type: "string", Enum: []string{"Always", "Never"}},
								},
								{
									ID:         "Pod.spec.containers",
									Mandatory:  true,
									Repeatable: true,
									Group:      GroupAnd,
									Children: []*FeatureNode{
										{ID: "Pod.spec.containers.name", Mandatory: true, Attr: &Attribute{Type: "string"}},
									},
								},
								{
									ID:    "Pod.spec.port",
									Group: GroupAlternative,
									Children: []*FeatureNode{
										{ID: "Pod.spec.port.asInteger", Attr: &Attribute{Type: "integer"}},
										{ID: "Pod.spec.port.asString", Attr: &Attribute{Type: "string"}},
									},
								},
							},
						},
						{ID: "Pod.status", AliasOf: "Pod.spec"},
					},
				},
			},
		},
		Constraints: []Constraint{
			{Kind: ConstraintRequires, Source: "Pod.spec.hostname", Target: "Pod.spec.containers", Trace: "required within branch Pod.spec"},
			{Kind: ConstraintExcludes, Source: "Pod.spec.port.asInteger", Target: "Pod.spec.port.asString"},
			{Kind: ConstraintExpr, Expr: Implies(Var("Pod.spec.restartPolicy"), Or(Var("Pod.spec.hostname"), Var("Pod.spec.containers")))},
		},
		Metadata: map[string]string{
			"Pod":      "Pod is a collection of containers",
			"Pod.spec": "Specification of the desired behavior",
		},
	}
	if err := m.BuildIndex(); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return m
}

func TestSerializeParseRoundTrip(t *testing.T) {
	m := testModel(t)

	var buf bytes.Buffer
	if err := Serialize(m, &buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Parse(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	opts := cmpopts.IgnoreUnexported(FeatureModel{})
	if diff := cmp.Diff(m, got, opts); diff != "" {
		t.Fatalf("round trip changed the model (-want +got):\n%s", diff)
	}

	// A second serialization must be byte-identical, otherwise model diffs
	// across schema versions pick up noise.
	var buf2 bytes.Buffer
	if err := Serialize(got, &buf2); err != nil {
		t.Fatalf("Serialize again: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), buf2.Bytes()) {
		t.Fatalf("serialization is not deterministic:\n%s\nvs\n%s", buf.String(), buf2.String())
	}
}

func TestSerializeCarriesInconsistencies(t *testing.T) {
	m := testModel(t)
	m.Inconsistencies = []string{"both requires and excludes derived for A / B"}

	var buf bytes.Buffer
	if err := Serialize(m, &buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(m.Inconsistencies, got.Inconsistencies); diff != "" {
		t.Fatalf("inconsistencies (-want +got):\n%s", diff)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		note  string
		input string
	}{
		{"unknown section", "bundles\n\tx optional\n"},
		{"content before header", "\tx optional\n"},
		{"bad cardinality", "features\n\troot sometimes\n"},
		{"unknown marker", "features\n\troot optional shiny\n"},
		{"indent jump", "features\n\troot optional\n\t\t\t\tdeep optional\n"},
		{"multiple roots", "features\n\ta optional\n\tb optional\n"},
		{"bad constraint form", "features\n\troot optional\nconstraints\n\timplies a b\n"},
		{"metadata without value", "features\n\troot optional\nmetadata\n\tno-tab-here\n"},
		{"empty file", ""},
	}
	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tc.input)); !errors.Is(err, ErrBadModelFile) {
				t.Fatalf("Parse: got %v, want ErrBadModelFile", err)
			}
		})
	}
}

func TestBuildIndexInvariants(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		m := &FeatureModel{Root: &FeatureNode{
			ID:       "root",
			Children: []*FeatureNode{{ID: "root.a"}, {ID: "root.a"}},
		}}
		if err := m.BuildIndex(); !errors.Is(err, ErrDuplicateFeature) {
			t.Fatalf("got %v, want ErrDuplicateFeature", err)
		}
	})

	t.Run("shared node", func(t *testing.T) {
		shared := &FeatureNode{ID: "root.a.x"}
		m := &FeatureModel{Root: &FeatureNode{
			ID: "root",
			Children: []*FeatureNode{
				{ID: "root.a", Children: []*FeatureNode{shared, shared}},
			},
		}}
		if err := m.BuildIndex(); !errors.Is(err, ErrNotATree) {
			t.Fatalf("got %v, want ErrNotATree", err)
		}
	})

	t.Run("dangling constraint", func(t *testing.T) {
		m := &FeatureModel{
			Root:        &FeatureNode{ID: "root", Children: []*FeatureNode{{ID: "root.a"}}},
			Constraints: []Constraint{{Kind: ConstraintRequires, Source: "root.a", Target: "root.gone"}},
		}
		if err := m.BuildIndex(); !errors.Is(err, ErrDanglingReference) {
			t.Fatalf("got %v, want ErrDanglingReference", err)
		}
	})

	t.Run("synthetic refs are fine", func(t *testing.T) {
		m := &FeatureModel{
			Root:        &FeatureNode{ID: "root", Children: []*FeatureNode{{ID: "root.a"}}},
			Constraints: []Constraint{{Kind: ConstraintRequires, Source: "root.a", Target: "root.a.isNull"}},
		}
		if err := m.BuildIndex(); err != nil {
			t.Fatalf("BuildIndex: %v", err)
		}
	})
}

func TestParent(t *testing.T) {
	m := testModel(t)

	if p, ok := m.Parent("Pod.spec.hostname"); !ok || p != "Pod.spec" {
		t.Fatalf("Parent(Pod.spec.hostname) = %q, %t", p, ok)
	}
	if _, ok := m.Parent("Pod"); ok {
		t.Fatal("kind feature must have no dotted parent")
	}
}

func TestSynthetic(t *testing.T) {
	if !IsSynthetic("Pod.spec.hostname.isNull") || !IsSynthetic("Pod.spec.isEmpty") {
		t.Fatal("synthetic suffixes not recognized")
	}
	if IsSynthetic("Pod.spec.hostname") {
		t.Fatal("plain feature flagged synthetic")
	}
	if got := SyntheticBase("Pod.spec.hostname.isNull"); got != "Pod.spec.hostname" {
		t.Fatalf("SyntheticBase = %q", got)
	}
}
