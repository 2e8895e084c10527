package playerstate

import (
	"encoding/json"
	"testing"
)

func TestSchema(t *testing.T) {
	decode := func(t *testing.T, p Policy) map[string]any {
		t.Helper()
		b, err := json.Marshal(Schema(p))
		if err != nil {
			t.Fatalf("marshal schema: %v", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(b, &doc); err != nil {
			t.Fatalf("unmarshal schema: %v", err)
		}
		return doc
	}

	t.Run("strict forbids additional properties", func(t *testing.T) {
		doc := decode(t, Strict)
		if ap, ok := doc["additionalProperties"].(bool); !ok || ap {
			t.Fatalf("expected additionalProperties=false, got %#v", doc["additionalProperties"])
		}
		props := doc["properties"].(map[string]any)
		if _, ok := props["is_admin"]; ok {
			t.Fatalf("strict schema must not describe is_admin")
		}
		loc := props["location"].(map[string]any)
		if ap, ok := loc["additionalProperties"].(bool); ok && !ap {
			t.Fatalf("nested objects must accept additional properties, got %#v", loc["additionalProperties"])
		}
	})

	t.Run("permissive describes the extension fields", func(t *testing.T) {
		doc := decode(t, Permissive)
		if ap, ok := doc["additionalProperties"].(bool); ok && !ap {
			t.Fatalf("permissive schema must allow additional properties")
		}
		props := doc["properties"].(map[string]any)
		for _, key := range []string{"equipment", "location", "is_admin", "gold"} {
			if _, ok := props[key]; !ok {
				t.Fatalf("expected property %q in %v", key, props)
			}
		}
		required, _ := doc["required"].([]any)
		for _, r := range required {
			if r == "is_admin" || r == "gold" {
				t.Fatalf("extension field %v must be optional", r)
			}
		}
	})
}
