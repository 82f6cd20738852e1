package synth

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/caosd-group/kubefm/internal/model"
	"github.com/caosd-group/kubefm/internal/schema"
)

func resolveRoot(t *testing.T, doc, root string) (*schema.Graph, *schema.Definition) {
	t.Helper()
	raw, err := schema.Load([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	g := schema.NewGraph(raw, nil)
	if err := g.Resolve([]string{root}); err != nil {
		t.Fatal(err)
	}
	roots := g.Roots()
	if len(roots) != 1 {
		t.Fatalf("expected one root, got %d", len(roots))
	}
	return g, roots[0]
}

func TestKindObjectTree(t *testing.T) {
	doc := `{"definitions": {
		"io.k8s.Pod": {
			"type": "object",
			"description": "Pod is a collection of containers.",
			"required": ["spec"],
			"properties": {
				"spec": {"$ref": "#/definitions/io.k8s.PodSpec"},
				"status": {"type": "string"}
			}
		},
		"io.k8s.PodSpec": {
			"type": "object",
			"required": ["containers"],
			"properties": {
				"containers": {"type": "array", "items": {"$ref": "#/definitions/io.k8s.Container"}}
			}
		},
		"io.k8s.Container": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string"},
				"imagePullPolicy": {"type": "string", "enum": ["Always", "Never", "IfNotPresent"]}
			}
		}
	}}`

	g, root := resolveRoot(t, doc, "Pod")
	got := New(g, nil).Kind(root)

	want := &model.FeatureNode{
		ID:         "Pod",
		Mandatory:  true,
		Group:      model.GroupAnd,
		Provenance: "io.k8s.Pod",
		Children: []*model.FeatureNode{
			{
				ID:         "Pod.spec",
				Mandatory:  true,
				Group:      model.GroupAnd,
				Provenance: "io.k8s.PodSpec",
				Children: []*model.FeatureNode{
					{
						ID:         "Pod.spec.containers",
						Mandatory:  true,
						Repeatable: true,
						Group:      model.GroupAnd,
						Children: []*model.FeatureNode{
							{
								ID:        "Pod.spec.containers.name",
								Mandatory: true,
								Attr:      &model.Attribute{Type: "string"},
							},
							{
								ID:   "Pod.spec.containers.imagePullPolicy",
								Attr: &model.Attribute{Type: "string", Enum: []string{"Always", "Never", "IfNotPresent"}},
							},
						},
					},
				},
			},
			{
				ID:   "Pod.status",
				Attr: &model.Attribute{Type: "string"},
			},
		},
	}

	if diff := cmp.Diff(want, got.Tree); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}
	if desc := got.Metadata["Pod"]; desc != "Pod is a collection of containers." {
		t.Fatalf("unexpected metadata for Pod: %q", desc)
	}
}

func TestKindUnionBranches(t *testing.T) {
	doc := `{"definitions": {
		"io.k8s.IntOrString": {
			"oneOf": [
				{"type": "integer"},
				{"type": "string"}
			]
		}
	}}`

	g, root := resolveRoot(t, doc, "IntOrString")
	got := New(g, nil).Kind(root)

	want := &model.FeatureNode{
		ID:         "IntOrString",
		Mandatory:  true,
		Group:      model.GroupAlternative,
		Provenance: "io.k8s.IntOrString",
		Children: []*model.FeatureNode{
			{ID: "IntOrString.asInteger", Attr: &model.Attribute{Type: "integer"}},
			{ID: "IntOrString.asString", Attr: &model.Attribute{Type: "string"}},
		},
	}
	if diff := cmp.Diff(want, got.Tree); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}
}

func TestKindCycleBecomesAlias(t *testing.T) {
	doc := `{"definitions": {
		"io.k8s.JSONSchemaProps": {
			"type": "object",
			"properties": {
				"not": {"$ref": "#/definitions/io.k8s.JSONSchemaProps"}
			}
		}
	}}`

	g, root := resolveRoot(t, doc, "JSONSchemaProps")
	got := New(g, nil).Kind(root)

	want := &model.FeatureNode{
		ID:         "JSONSchemaProps",
		Mandatory:  true,
		Group:      model.GroupAnd,
		Provenance: "io.k8s.JSONSchemaProps",
		Children: []*model.FeatureNode{
			{
				ID:         "JSONSchemaProps.not",
				AliasOf:    "JSONSchemaProps",
				Provenance: "io.k8s.JSONSchemaProps",
			},
		},
	}
	if diff := cmp.Diff(want, got.Tree); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%s", diff)
	}
}

func TestKindSharedReferenceBecomesAlias(t *testing.T) {
	doc := `{"definitions": {
		"io.k8s.Wrapper": {
			"type": "object",
			"properties": {
				"a": {"$ref": "#/definitions/io.k8s.Thing"},
				"b": {"$ref": "#/definitions/io.k8s.Thing"}
			}
		},
		"io.k8s.Thing": {
			"type": "object",
			"properties": {"x": {"type": "string"}}
		}
	}}`

	g, root := resolveRoot(t, doc, "Wrapper")
	got := New(g, nil).Kind(root)

	a, b := got.Tree.Children[0], got.Tree.Children[1]
	if a.AliasOf != "" {
		t.Fatalf("first visit should expand, got alias of %q", a.AliasOf)
	}
	if len(a.Children) != 1 || a.Children[0].ID != "Wrapper.a.x" {
		t.Fatalf("unexpected expansion of first visit: %+v", a)
	}
	if b.AliasOf != "Wrapper.a" {
		t.Fatalf("second visit should alias Wrapper.a, got %q", b.AliasOf)
	}
	if len(b.Children) != 0 {
		t.Fatalf("alias node must be a leaf, got %d children", len(b.Children))
	}
}

func TestEscapeSegment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"name", "name"},
		{"imagePullPolicy", "imagePullPolicy"},
		{"kubernetes.io/hostname", "kubernetes_io_hostname"},
		{"x-kubernetes-int-or-string", "x-kubernetes-int-or-string"},
		{"requires", "f_requires"},
		{"type", "f_type"},
		{"123abc", "f_123abc"},
		{"", "f_"},
	}
	for _, tc := range tests {
		if got := EscapeSegment(tc.input); got != tc.want {
			t.Errorf("EscapeSegment(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSanitizeEnum(t *testing.T) {
	tests := []struct {
		input []string
		want  []string
	}{
		{nil, nil},
		{[]string{"Always", "Never"}, []string{"Always", "Never"}},
		{[]string{"a|b", "c"}, []string{"a_b", "c"}},
		{[]string{"Rolling Update", "Recreate"}, []string{"Rolling_Update", "Recreate"}},
		{[]string{"line\nbreak", "\ttabbed "}, []string{"line_break", "tabbed"}},
		{[]string{"   "}, []string{"_"}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, sanitizeEnum(tc.input)); diff != "" {
			t.Errorf("sanitizeEnum(%q) (-want +got):\n%s", tc.input, diff)
		}
	}
}

// A synthesized model must parse back after serialization even when enum
// values in the schema carry spaces.
func TestSpacedEnumSurvivesRoundTrip(t *testing.T) {
	doc := `{"definitions": {
		"io.k8s.Deployment": {
			"type": "object",
			"properties": {
				"strategy": {"type": "string", "enum": ["Rolling Update", "Recreate"]}
			}
		}
	}}`
	g, root := resolveRoot(t, doc, "Deployment")
	res := New(g, nil).Kind(root)

	fm, err := model.Assemble("root", []*model.FeatureNode{res.Tree}, nil, res.Metadata)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var buf bytes.Buffer
	if err := model.Serialize(fm, &buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	reloaded, err := model.Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	strategy, ok := reloaded.Feature("Deployment.strategy")
	if !ok || strategy.Attr == nil {
		t.Fatal("Deployment.strategy missing after reload")
	}
	want := []string{"Rolling_Update", "Recreate"}
	if diff := cmp.Diff(want, strategy.Attr.Enum); diff != "" {
		t.Fatalf("enum (-want +got):\n%s", diff)
	}
}

func TestSanitizeDescription(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain text", "plain text"},
		{"line\none\n\nline two", "line one line two"},
		{"uses `code` and \"quotes\"", "uses code and quotes"},
		{"braces {like this}", "braces like this"},
		{"non-ascii éè stripped", "non-ascii stripped"},
		{"trailing spaces   ", "trailing spaces"},
	}
	for _, tc := range tests {
		if got := SanitizeDescription(tc.input); got != tc.want {
			t.Errorf("SanitizeDescription(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
