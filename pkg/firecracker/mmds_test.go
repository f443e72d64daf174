package firecracker

import (
	"context"
	"testing"

	"github.com/maxdollinger/fireside/pkg/resource"
)

func TestMetadataReplacesDocument(t *testing.T) {
	m, _ := New(nil)
	if err := m.Metadata(map[string]any{"a": 1, "b": 2}); err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if err := m.Metadata(map[string]any{"c": 3}); err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}

	doc := m.MetadataDocument()
	if len(doc) != 1 || doc["c"] != 3 {
		t.Errorf("doc = %v, want full replacement", doc)
	}
}

func TestSetMetadataKey(t *testing.T) {
	m, _ := New(nil)
	if err := m.SetMetadata("instance_id", "i-1"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if err := m.SetMetadata("zone", "a"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if err := m.SetMetadata("instance_id", "i-2"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}

	doc := m.MetadataDocument()
	if doc["instance_id"] != "i-2" || doc["zone"] != "a" {
		t.Errorf("doc = %v", doc)
	}
}

func TestUpdateMetadataKey(t *testing.T) {
	m, _ := New(nil)

	incr := func(v any) any {
		n, _ := v.(int)
		return n + 1
	}
	if err := m.UpdateMetadata("boots", 0, incr); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}
	if err := m.UpdateMetadata("boots", 0, incr); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}

	if doc := m.MetadataDocument(); doc["boots"] != 2 {
		t.Errorf("boots = %v, want 2 (default applied once, then incremented)", doc["boots"])
	}
}

func TestMetadataMutationResetsApplied(t *testing.T) {
	api := newFakeAPI()
	m := newTestMachine(t, StateStarted, api)
	if err := m.Metadata(map[string]any{"k": "v"}); err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if err := m.Apply(context.Background()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !m.Applied(resource.KindMMDS) {
		t.Fatal("mmds should be applied")
	}

	if err := m.SetMetadata("k", "v2"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if m.Applied(resource.KindMMDS) {
		t.Error("metadata mutation must reset applied")
	}

	api.calls = nil
	if err := m.Apply(context.Background()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := api.paths(); len(got) != 1 || got[0] != "/mmds" {
		t.Fatalf("calls = %v, want one PUT /mmds", got)
	}
	doc, ok := api.calls[0].Body.(map[string]any)
	if !ok || doc["k"] != "v2" {
		t.Errorf("mmds body = %v, want the raw document", api.calls[0].Body)
	}
	if api.calls[0].Op != "put" {
		t.Errorf("mmds op = %s, want put in every state", api.calls[0].Op)
	}
}
