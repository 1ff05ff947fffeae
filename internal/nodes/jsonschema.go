package nodes

// JSONSchema renders the compiled grammar as a JSON-Schema document with
// one $def per node type and the root as entry point. Structured-object
// backends receive this to constrain generation.
func (s *Schema) JSONSchema() map[string]any {
	defs := make(map[string]any, len(s.grammar))
	for _, name := range s.grammar.Types() {
		defs[name] = s.defSchema(name)
	}
	return map[string]any{
		"$ref":  "#/$defs/" + RootType,
		"$defs": defs,
	}
}

func (s *Schema) defSchema(name string) map[string]any {
	def := s.grammar[name]
	props := map[string]any{
		"type": map[string]any{"const": name},
	}
	if len(def.Children) > 0 {
		refs := make([]any, 0, len(def.Children))
		for _, child := range def.Children {
			refs = append(refs, map[string]any{"$ref": "#/$defs/" + child})
		}
		props["children"] = map[string]any{
			"type":  "array",
			"items": map[string]any{"anyOf": refs},
		}
	}
	if def.HasText {
		props["text"] = map[string]any{"type": "string"}
	}
	for attr, allowed := range def.Enums {
		vals := make([]any, 0, len(allowed))
		for _, v := range allowed {
			vals = append(vals, v)
		}
		props[attr] = map[string]any{"enum": vals}
	}
	for _, attr := range def.Required {
		if _, declared := props[attr]; !declared {
			props[attr] = map[string]any{"type": "string"}
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := s.required[name]; len(req) > 0 {
		vals := make([]any, 0, len(req))
		for _, r := range req {
			vals = append(vals, r)
		}
		out["required"] = vals
	}
	return out
}

// PrimitiveSchema is the inferred schema for plain fields lacking a
// rich-document grammar: a single string value wrapped in an object.
func PrimitiveSchema(fieldName string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			fieldName: map[string]any{"type": "string"},
		},
		"required": []any{fieldName},
	}
}
