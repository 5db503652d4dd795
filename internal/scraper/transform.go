package scraper

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// normalizeText trims a value; empty after trim becomes nil.
func normalizeText(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return nil
	}
	return cleaned
}

// serializeList turns list or object values into a JSON string. Strings pass
// through unchanged; nil, empty strings and empty lists become nil.
func serializeList(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return v
	case []any:
		if len(v) == 0 {
			return nil
		}
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return string(b)
}

// absoluteURL resolves a relative URL against the storefront origin.
// Absolute URLs pass through unchanged.
func absoluteURL(value, base string) any {
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return value
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(value, "/")
}

// safeFloat coerces a value to float64, or nil when it cannot be converted.
func safeFloat(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return f
	case string:
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

// datetimeLayouts are the timestamp shapes the storefront has been seen
// emitting. All are interpreted as UTC when no zone is present.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDatetime parses a datetime-like value to a UTC instant; unparsable
// values become nil.
func parseDatetime(value any) any {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return nil
}

// computeDurationDays is end minus start in days, rounded to 3 decimals.
// Nil if either bound is missing.
func computeDurationDays(start, end any) any {
	s, okS := start.(time.Time)
	e, okE := end.(time.Time)
	if !okS || !okE {
		return nil
	}
	days := e.Sub(s).Seconds() / 86400
	return math.Round(days*1000) / 1000
}

// computeIsActive reports whether now falls inside [start, end]. False when
// either bound is missing, regardless of now.
func computeIsActive(start, end any, now time.Time) bool {
	s, okS := start.(time.Time)
	e, okE := end.(time.Time)
	if !okS || !okE {
		return false
	}
	return !now.Before(s) && !now.After(e)
}
