package llm

// BuildOpinionJSONSchema describes the verdict object the judge must return.
// Probabilities need not be normalized; the fusion engine rescales them.
func BuildOpinionJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"real_probability": probabilityProp(),
			"fake_probability": probabilityProp(),
			"reason":           map[string]any{"type": "string"},
		},
	}
}

func probabilityProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0}
}
