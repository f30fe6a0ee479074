package openai

import "testing"

func TestFilterDSLSchema_RequiredFields(t *testing.T) {
	schema := FilterDSLSchema()
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %#v", schema["properties"])
	}
	if _, ok := props["conditions"]; !ok {
		t.Fatalf("expected conditions property")
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "conditions" {
		t.Fatalf("expected required=[conditions], got %#v", schema["required"])
	}
}
