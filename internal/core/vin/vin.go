// Package vin finds vehicle-identification-number shaped tokens in free text.
package vin

import (
	"regexp"
	"strings"
)

// 11..17 characters from the VIN alphabet (no I, O, Q). No checksum validation.
var reVIN = regexp.MustCompile(`(?i)\b[A-HJ-NPR-Z0-9]{11,17}\b`)

// Extract returns the VIN candidates in text, uppercased and deduplicated in
// order of first occurrence.
func Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	matches := reVIN.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		m = strings.ToUpper(m)
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Contains reports whether vin is one of the candidates.
func Contains(candidates []string, vin string) bool {
	if vin == "" {
		return false
	}
	for _, c := range candidates {
		if c == vin {
			return true
		}
	}
	return false
}
