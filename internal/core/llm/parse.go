package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

var (
	errNoObject   = errors.New("no JSON object in model output")
	errIncomplete = errors.New("opinion lacks a usable probability pair")
)

// FirstJSONObject returns the first balanced {...} span in s. Braces inside
// JSON strings are ignored.
func FirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// StripCodeFences removes a surrounding markdown code fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseOpinion extracts, sanitizes and validates a verdict from raw model output.
// It returns the dropped fields alongside the opinion for logging.
func ParseOpinion(raw string, schema *jsonschema.Schema) (*entity.JudgeOpinion, []string, error) {
	span, ok := FirstJSONObject(StripCodeFences(raw))
	if !ok {
		return nil, nil, errNoObject
	}
	cleaned, dropped, err := SanitizeOpinion([]byte(span))
	if err != nil {
		return nil, dropped, err
	}
	if err := ValidateJSON(schema, cleaned); err != nil {
		return nil, dropped, err
	}

	var op entity.JudgeOpinion
	if err := json.Unmarshal(cleaned, &op); err != nil {
		return nil, dropped, fmt.Errorf("unmarshal opinion: %w", err)
	}
	if op.RealProbability == nil || op.FakeProbability == nil {
		return nil, dropped, errIncomplete
	}
	return &op, dropped, nil
}
