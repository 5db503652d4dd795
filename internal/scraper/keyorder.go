package scraper

import (
	"bytes"
	"encoding/json"
	"sort"
)

// keyOrder returns the keys of the object at the given path in raw JSON, in
// the order they appear in the text. Decoding into a Go map loses that order,
// but the storefront lists tiers and items in a meaningful sequence, so it is
// recovered with a token scan. A missing path or non-object value yields nil.
func keyOrder(raw []byte, path ...string) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if !seekObject(dec, path) {
		return nil
	}

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		keys = append(keys, key)
		if skipValue(dec) != nil {
			return nil
		}
	}
	return keys
}

// seekObject advances the decoder until it is positioned at the value of the
// given key path.
func seekObject(dec *json.Decoder, path []string) bool {
	if len(path) == 0 {
		return true
	}

	tok, err := dec.Token()
	if err != nil {
		return false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return false
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		key, ok := tok.(string)
		if !ok {
			return false
		}
		if key == path[0] {
			return seekObject(dec, path[1:])
		}
		if skipValue(dec) != nil {
			return false
		}
	}
	return false
}

// skipValue consumes one whole JSON value, nested or scalar.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// orderedKeys filters order down to keys the map actually holds, then appends
// any leftover map keys in sorted order so no entry is lost when the raw scan
// came up short.
func orderedKeys(m map[string]any, order []string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, key := range order {
		if _, ok := m[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	var rest []string
	for key := range m {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
