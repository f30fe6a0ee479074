package openai

// FilterDSLSchema returns the JSON schema object for the FilterParser's
// structured-output request: a discriminated union of scalar/list/range
// condition shapes joined by a single combine operator. Adapted from the
// teacher's tool-parameter schema adaptation to describe the engine's own
// FilterDSL instead of a function-calling tool signature.
func FilterDSLSchema() map[string]any {
	fields := []string{"docType", "repoId", "lang", "path", "mimeType", "ingestedAt", "createdAt", "updatedAt"}
	scalarOps := []string{"eq", "ne", "gt", "gte", "lt", "lte", "isNull", "isNotNull"}
	listOps := []string{"in", "notIn"}
	rangeOps := []string{"between", "notBetween"}

	condition := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field":  map[string]any{"type": "string", "enum": fields},
			"op":     map[string]any{"type": "string", "enum": append(append(append([]string{}, scalarOps...), listOps...), rangeOps...)},
			"value":  map[string]any{},
			"values": map[string]any{"type": "array", "items": map[string]any{}},
			"range": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"low":  map[string]any{},
					"high": map[string]any{},
				},
			},
		},
		"required": []string{"field", "op"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"conditions": map[string]any{"type": "array", "items": condition},
			"combine":    map[string]any{"type": "string", "enum": []string{"and", "or"}},
		},
		"required": []string{"conditions"},
	}
}
