package playerstate

import (
	"github.com/invopop/jsonschema"
)

// Schema reflects the JSON Schema document describing the state shape bound
// under p. The strict document forbids additional properties on the top-level
// object only, matching BindStrict.
func Schema(p Policy) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	var s *jsonschema.Schema
	if p == Strict {
		s = r.Reflect(new(StrictState))
		s.AdditionalProperties = jsonschema.FalseSchema
		s.Title = "Player state (secure)"
	} else {
		s = r.Reflect(new(PermissiveState))
		s.Title = "Player state (vulnerable)"
	}
	s.ID = jsonschema.ID("https://dungeons-and-money.example/schema/" + p.String())
	return s
}
