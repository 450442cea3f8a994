package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Profile is a parsed userinfo document.
type Profile map[string]any

// ParseProfile decodes a userinfo body. The raw bytes are what gets stored as
// the profile snapshot; the parsed form exists only for field extraction.
// Numbers decode as json.Number so large numeric ids keep their exact literal
// form instead of going through float64.
func ParseProfile(body []byte) (Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}

// Extract resolves a dotted path (e.g. "profile.display_name") segment by
// segment. It returns def when any intermediate segment is absent or not a
// nested document, or when the final key is missing. Non-string leaf values
// are formatted with fmt.Sprint so numeric ids still extract usefully.
func (p Profile) Extract(path, def string) string {
	if path == "" {
		return def
	}

	parts := strings.Split(path, ".")
	current := map[string]any(p)

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			return def
		}
		nested, ok := next.(map[string]any)
		if !ok {
			return def
		}
		current = nested
	}

	val, ok := current[parts[len(parts)-1]]
	if !ok || val == nil {
		return def
	}

	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprint(val)
}

// Has reports whether a dotted path resolves to a present, non-nil value.
func (p Profile) Has(path string) bool {
	const sentinel = "\x00minelink-absent\x00"
	return p.Extract(path, sentinel) != sentinel
}
