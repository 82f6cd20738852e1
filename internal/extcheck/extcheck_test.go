package extcheck

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/caosd-group/kubefm/internal/corpus"
)

func writeDefs(t *testing.T) string {
	t.Helper()
	defs := `{"definitions": {
		"io.k8s.api.core.v1.Pod": {
			"type": "object",
			"required": ["spec"],
			"properties": {
				"apiVersion": {"type": "string"},
				"kind": {"type": "string"},
				"spec": {
					"type": "object",
					"required": ["containers"],
					"properties": {
						"containers": {"type": "array", "items": {"type": "object"}}
					}
				}
			}
		}
	}}`
	path := filepath.Join(t.TempDir(), "defs.json")
	if err := os.WriteFile(path, []byte(defs), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	c, err := New(writeDefs(t))
	if err != nil {
		t.Fatal(err)
	}

	docs := []corpus.Document{
		{
			Path: "good.yaml", Kind: "Pod", APIVersion: "v1",
			Bytes: []byte("apiVersion: v1\nkind: Pod\nspec:\n  containers: []\n"),
		},
		{
			Path: "bad.yaml", Kind: "Pod", APIVersion: "v1",
			Bytes: []byte("apiVersion: v1\nkind: Pod\nspec: {}\n"),
		},
		{
			Path: "other.yaml", Kind: "Gateway", APIVersion: "networking/v1",
			Bytes: []byte("apiVersion: networking/v1\nkind: Gateway\n"),
		},
	}

	rows, err := c.Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"valid", "invalid", "skipped"}
	for i, r := range rows {
		if r.Source != "jsonschema" {
			t.Errorf("row %d: source = %q", i, r.Source)
		}
		if r.Result != want[i] {
			t.Errorf("%s: result = %q, want %q", r.Filename, r.Result, want[i])
		}
	}
}

func TestQualifyPrefersMatchingVersion(t *testing.T) {
	defs := `{"definitions": {
		"io.k8s.api.apps.v1.Deployment": {"type": "object"},
		"io.k8s.api.apps.v1beta1.Deployment": {"type": "object"}
	}}`
	path := filepath.Join(t.TempDir(), "defs.json")
	if err := os.WriteFile(path, []byte(defs), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	name, ok := c.qualify("Deployment", "apps/v1beta1")
	if !ok || name != "io.k8s.api.apps.v1beta1.Deployment" {
		t.Fatalf("qualify = %q ok=%v", name, ok)
	}
	name, ok = c.qualify("Deployment", "apps/v1")
	if !ok || name != "io.k8s.api.apps.v1.Deployment" {
		t.Fatalf("qualify = %q ok=%v", name, ok)
	}
}
