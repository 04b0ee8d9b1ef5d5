package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Merge overlays the fields present in raw onto a copy of base. Fields the
// server did not send keep their cached values. The copy shares no
// pointers with base, so base is never written through.
func Merge[T any](base T, raw json.RawMessage) (T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return base, nil
	}
	encoded, err := json.Marshal(base)
	if err != nil {
		return base, fmt.Errorf("copy record: %w", err)
	}
	var merged T
	if err := json.Unmarshal(encoded, &merged); err != nil {
		return base, fmt.Errorf("copy record: %w", err)
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return base, fmt.Errorf("merge record: %w", err)
	}
	return merged, nil
}

// Matches reports whether any search field contains q, case-insensitively.
// q is expected to be trimmed and lower-cased already.
func Matches(r Record, q string) bool {
	if q == "" {
		return true
	}
	for _, f := range r.SearchFields() {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// NormalizeQuery prepares a search box value for Matches.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
