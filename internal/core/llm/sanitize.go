package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

var probabilityKeys = []string{"real_probability", "fake_probability"}

// SanitizeOpinion makes a judge verdict fit the opinion schema where it can:
// numeric strings become numbers (a trailing % is read as a percentage),
// negative or non-numeric probabilities are dropped, reason is trimmed and
// unknown keys are removed. It returns the cleaned document and what was dropped.
func SanitizeOpinion(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string
	for _, k := range probabilityKeys {
		v, ok := m[k]
		if !ok {
			continue
		}
		f, ok := toProbability(v)
		if !ok {
			delete(m, k)
			dropped = append(dropped, k)
			continue
		}
		m[k] = f
	}

	switch v := m["reason"].(type) {
	case nil:
		delete(m, "reason")
	case string:
		m["reason"] = strings.TrimSpace(v)
	default:
		m["reason"] = strings.TrimSpace(fmt.Sprint(v))
	}

	for k := range maps.Clone(m) {
		switch k {
		case "real_probability", "fake_probability", "reason":
		default:
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

func toProbability(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		pct := strings.HasSuffix(s, "%")
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if pct {
			p /= 100
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}
