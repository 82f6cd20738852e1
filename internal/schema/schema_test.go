package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const podDefs = `{
  "definitions": {
    "io.k8s.api.core.v1.Pod": {
      "description": "Pod is a collection of containers.",
      "type": "object",
      "properties": {
        "spec": {"$ref": "#/definitions/io.k8s.api.core.v1.PodSpec"},
        "port": {"oneOf": [{"type": "integer"}, {"type": "string"}]}
      },
      "required": ["spec"]
    },
    "io.k8s.api.core.v1.PodSpec": {
      "type": "object",
      "properties": {
        "hostname": {"type": "string"},
        "restartPolicy": {"type": "string", "enum": ["Always", "Never"]},
        "containers": {
          "type": "array",
          "items": {"$ref": "#/definitions/io.k8s.api.core.v1.Container"}
        },
        "template": {"$ref": "#/definitions/io.k8s.api.core.v1.PodSpec"}
      }
    },
    "io.k8s.api.core.v1.Container": {
      "type": "object",
      "properties": {"name": {"type": "string"}}
    },
    "io.k8s.api.core.v1.Unreached": {"type": "string"}
  }
}`

func loadGraph(t *testing.T, doc string, roots ...string) *Graph {
	t.Helper()
	raw, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g := NewGraph(raw, nil)
	if err := g.Resolve(roots); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return g
}

func TestLoadKeepsDeclarationOrder(t *testing.T) {
	raw, err := Load([]byte(podDefs))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{
		"io.k8s.api.core.v1.Pod",
		"io.k8s.api.core.v1.PodSpec",
		"io.k8s.api.core.v1.Container",
		"io.k8s.api.core.v1.Unreached",
	}
	if diff := cmp.Diff(want, raw.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestLoadFlatDocument(t *testing.T) {
	raw, err := Load([]byte(`{"a.B": {"type": "string"}, "a.C": {"type": "integer"}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"a.B", "a.C"}, raw.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestLoadWrapsScalarAliases(t *testing.T) {
	raw, err := Load([]byte(`{"a.Alias": "string"}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	node, ok := raw.Node("a.Alias")
	if !ok {
		t.Fatal("a.Alias missing")
	}
	if typ, _ := sliceGetString(node, "type"); typ != "string" {
		t.Fatalf("wrapped node type = %q", typ)
	}
}

func TestLoadMalformed(t *testing.T) {
	for _, doc := range []string{
		`[1, 2]`,
		`{"definitions": 5}`,
	} {
		if _, err := Load([]byte(doc)); !errors.Is(err, ErrMalformedSchema) {
			t.Errorf("Load(%s): got %v, want ErrMalformedSchema", doc, err)
		}
	}
}

func TestResolveReachableGraph(t *testing.T) {
	g := loadGraph(t, podDefs, "Pod")

	if got := len(g.Roots()); got != 1 {
		t.Fatalf("roots = %d, want 1", got)
	}
	pod := g.Roots()[0]
	if pod.Name != "io.k8s.api.core.v1.Pod" || pod.Kind != KindObject {
		t.Fatalf("root = %s (%s)", pod.Name, pod.Kind)
	}
	if pod.ShortName() != "Pod" {
		t.Fatalf("ShortName = %q", pod.ShortName())
	}
	if !pod.IsRequired("spec") || pod.IsRequired("port") {
		t.Fatal("required list not honored")
	}

	// Only Pod, PodSpec and Container are reachable; Unreached must never
	// be materialized.
	if g.Len() != 3 {
		t.Fatalf("materialized %d definitions, want 3", g.Len())
	}
	if _, ok := g.Definition("io.k8s.api.core.v1.Unreached"); ok {
		t.Fatal("unreachable definition was materialized")
	}

	spec, ok := g.Definition("io.k8s.api.core.v1.PodSpec")
	if !ok {
		t.Fatal("PodSpec missing")
	}
	if pod.Properties[0].Def != spec {
		t.Fatal("reference does not point at the arena definition")
	}
	if len(g.Warnings()) != 0 {
		t.Fatalf("unexpected warnings: %v", g.Warnings())
	}
}

func TestResolveSelfReference(t *testing.T) {
	g := loadGraph(t, podDefs, "PodSpec")
	spec := g.Roots()[0]

	var template *Definition
	for _, p := range spec.Properties {
		if p.Name == "template" {
			template = p.Def
		}
	}
	if template != spec {
		t.Fatal("self-reference must resolve to the definition itself")
	}
}

func TestResolveUnionAndScalar(t *testing.T) {
	g := loadGraph(t, podDefs, "Pod")
	pod := g.Roots()[0]

	port := pod.Properties[1].Def
	if port.Kind != KindUnion || !port.Exclusive || len(port.Branches) != 2 {
		t.Fatalf("port = %s exclusive=%t branches=%d", port.Kind, port.Exclusive, len(port.Branches))
	}
	if port.Branches[0].Scalar.Type != "integer" || port.Branches[1].Scalar.Type != "string" {
		t.Fatal("union branch types lost")
	}

	spec, _ := g.Definition("io.k8s.api.core.v1.PodSpec")
	var policy *Definition
	for _, p := range spec.Properties {
		if p.Name == "restartPolicy" {
			policy = p.Def
		}
	}
	want := Scalar{Type: "string", Enum: []string{"Always", "Never"}}
	if policy.Kind != KindScalar {
		t.Fatalf("restartPolicy kind = %s", policy.Kind)
	}
	if diff := cmp.Diff(want, policy.Scalar); diff != "" {
		t.Fatalf("scalar (-want +got):\n%s", diff)
	}
}

func TestResolveArrayElement(t *testing.T) {
	g := loadGraph(t, podDefs, "PodSpec")
	spec := g.Roots()[0]

	var containers *Definition
	for _, p := range spec.Properties {
		if p.Name == "containers" {
			containers = p.Def
		}
	}
	if containers.Kind != KindArray {
		t.Fatalf("containers kind = %s", containers.Kind)
	}
	elem, _ := g.Definition("io.k8s.api.core.v1.Container")
	if containers.Elem != elem {
		t.Fatal("array element must resolve through the arena")
	}
}

func TestResolveWarnings(t *testing.T) {
	const doc = `{
    "a.Broken": {
      "type": "object",
      "properties": {
        "gone": {"$ref": "#/definitions/a.Missing"},
        "odd": {"patternProperties": {}},
        "bare": {"type": "array"}
      }
    }
  }`
	g := loadGraph(t, doc, "Broken")

	broken := g.Roots()[0]
	for _, p := range broken.Properties {
		if p.Def.Kind != KindUnknown {
			t.Errorf("property %s kind = %s, want unknown", p.Name, p.Def.Kind)
		}
	}

	kinds := make(map[WarnKind]int)
	for _, w := range g.Warnings() {
		kinds[w.Kind]++
	}
	if kinds[WarnUnresolvedReference] != 1 || kinds[WarnUnsupportedConstruct] != 2 {
		t.Fatalf("warnings = %v", g.Warnings())
	}
}

func TestResolveBareRefAlias(t *testing.T) {
	const doc = `{
  "definitions": {
    "io.k8s.kubernetes.pkg.apis.v1.Pod": {
      "description": "Deprecated.",
      "$ref": "#/definitions/io.k8s.kubernetes.pkg.api.v1.Pod"
    },
    "io.k8s.kubernetes.pkg.api.v1.Pod": {
      "description": "Deprecated.",
      "$ref": "#/definitions/io.k8s.api.core.v1.Pod"
    },
    "io.k8s.api.core.v1.Pod": {
      "type": "object",
      "properties": {"spec": {"type": "string"}},
      "required": ["spec"]
    }
  }
}`
	g := loadGraph(t, doc, "io.k8s.kubernetes.pkg.apis.v1.Pod")

	target, ok := g.Definition("io.k8s.api.core.v1.Pod")
	if !ok {
		t.Fatal("alias target not materialized")
	}
	if target.Name != "io.k8s.api.core.v1.Pod" {
		t.Fatalf("alias expansion renamed the target to %q", target.Name)
	}
	if target.Kind != KindObject || len(target.Properties) != 1 {
		t.Fatalf("target not expanded: kind=%s properties=%d", target.Kind, len(target.Properties))
	}

	// The head of the alias chain fills from the real definition while
	// keeping its own name.
	alias := g.Roots()[0]
	if alias.Name != "io.k8s.kubernetes.pkg.apis.v1.Pod" {
		t.Fatalf("alias name = %q", alias.Name)
	}
	if alias.Kind != KindObject || len(alias.Properties) != 1 || alias.Properties[0].Name != "spec" {
		t.Fatalf("alias not filled from target: kind=%s properties=%d", alias.Kind, len(alias.Properties))
	}
	if !alias.IsRequired("spec") {
		t.Fatal("alias must carry the target's required set")
	}
	if len(g.Warnings()) != 0 {
		t.Fatalf("warnings = %v", g.Warnings())
	}
}

func TestResolveAliasCycle(t *testing.T) {
	const doc = `{
    "a.One": {"$ref": "#/definitions/a.Two"},
    "a.Two": {"$ref": "#/definitions/a.One"}
  }`
	g := loadGraph(t, doc, "One")

	if g.Roots()[0].Kind != KindUnknown {
		t.Fatalf("cyclic alias kind = %s, want unknown", g.Roots()[0].Kind)
	}
	if len(g.Warnings()) != 2 {
		t.Fatalf("warnings = %v", g.Warnings())
	}
}

func TestResolveRootQualification(t *testing.T) {
	const doc = `{
    "x.v1.Thing": {"type": "string"},
    "y.v1.Thing": {"type": "string"},
    "x.v1.Only": {"type": "string"}
  }`

	g := loadGraph(t, doc, "Only")
	if len(g.Roots()) != 1 || g.Roots()[0].Name != "x.v1.Only" {
		t.Fatalf("roots = %v", g.Roots())
	}

	// An ambiguous short name resolves to nothing and warns.
	g = loadGraph(t, doc, "Thing")
	if len(g.Roots()) != 0 {
		t.Fatalf("ambiguous root produced %d roots", len(g.Roots()))
	}
	if len(g.Warnings()) != 1 || g.Warnings()[0].Kind != WarnUnresolvedReference {
		t.Fatalf("warnings = %v", g.Warnings())
	}
}

func TestResolveAllRootsByDefault(t *testing.T) {
	g := loadGraph(t, podDefs)
	if got := len(g.Roots()); got != 4 {
		t.Fatalf("roots = %d, want every top-level definition", got)
	}
}

func TestRefWithSiblingsFoldsToIntersection(t *testing.T) {
	const doc = `{
    "a.Base": {"type": "object", "properties": {"x": {"type": "string"}}},
    "a.Derived": {
      "$ref": "#/definitions/a.Base",
      "properties": {"y": {"type": "string"}}
    }
  }`
	g := loadGraph(t, doc, "Derived")
	derived := g.Roots()[0]
	if derived.Kind != KindIntersection || len(derived.Branches) != 1 {
		t.Fatalf("derived = %s branches=%d", derived.Kind, len(derived.Branches))
	}
	base, _ := g.Definition("a.Base")
	if derived.Branches[0] != base {
		t.Fatal("intersection branch must point at the arena definition")
	}
}
