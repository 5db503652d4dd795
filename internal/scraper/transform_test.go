package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDatetime(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value any

		want any
	}{
		"RFC3339 timestamp":       {value: "2025-03-04T10:00:00Z", want: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},
		"Zoneless microseconds":   {value: "2025-03-04T10:00:00.123456", want: time.Date(2025, 3, 4, 10, 0, 0, 123456000, time.UTC)},
		"Zoneless seconds":        {value: "2025-03-04T10:00:00", want: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},
		"Space separated":         {value: "2025-03-04 10:00:00", want: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},
		"Date only":               {value: "2025-03-04", want: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)},
		"Offset converted to UTC": {value: "2025-03-04T12:00:00+02:00", want: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},

		"Garbage is nil":    {value: "not a date", want: nil},
		"Empty is nil":      {value: "", want: nil},
		"Non string is nil": {value: 42.0, want: nil},
		"Nil stays nil":     {value: nil, want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := parseDatetime(tc.value)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSafeFloat(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value any

		want any
	}{
		"Float passes through": {value: 12.5, want: 12.5},
		"Int is converted":     {value: 12, want: 12.0},
		"Numeric string":       {value: "1234.5", want: 1234.5},
		"Negative string":      {value: "-3", want: -3.0},

		"Empty string is nil":       {value: "", want: nil},
		"Non numeric string is nil": {value: "12,345", want: nil},
		"Bool is nil":               {value: true, want: nil},
		"Nil stays nil":             {value: nil, want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := safeFloat(tc.value)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAbsoluteURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value string

		want any
	}{
		"Absolute passes through":       {value: "https://example.com/a", want: "https://example.com/a"},
		"Plain http passes through":     {value: "http://example.com/a", want: "http://example.com/a"},
		"Relative joins base":           {value: "books/bundle", want: "https://www.humblebundle.com/books/bundle"},
		"Leading slash is not doubled":  {value: "/books/bundle", want: "https://www.humblebundle.com/books/bundle"},
		"Empty is nil":                  {value: "", want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := absoluteURL(tc.value, "https://www.humblebundle.com")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSerializeList(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value any

		want any
	}{
		"List becomes JSON":      {value: []any{"a", "b"}, want: `["a","b"]`},
		"Object becomes JSON":    {value: map[string]any{"k": "v"}, want: `{"k":"v"}`},
		"String passes through":  {value: "already text", want: "already text"},
		"Empty list is nil":      {value: []any{}, want: nil},
		"Empty string is nil":    {value: "", want: nil},
		"Nil stays nil":          {value: nil, want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := serializeList(tc.value)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value any

		want any
	}{
		"Trims whitespace":        {value: "  hello \n", want: "hello"},
		"Whitespace only is nil":  {value: "   ", want: nil},
		"Empty is nil":            {value: "", want: nil},
		"Non string is untouched": {value: 3.0, want: 3.0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := normalizeText(tc.value)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeDurationDays(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		start any
		end   any

		want any
	}{
		"Whole weeks":          {start: start, end: start.AddDate(0, 0, 14), want: 14.0},
		"Fractional days":      {start: start, end: start.Add(36 * time.Hour), want: 1.5},
		"Rounds to 3 decimals": {start: start, end: start.Add(time.Hour), want: 0.042},
		"Negative window":      {start: start, end: start.Add(-24 * time.Hour), want: -1.0},

		"Missing start is nil": {start: nil, end: start, want: nil},
		"Missing end is nil":   {start: start, end: nil, want: nil},
		"Both missing is nil":  {start: nil, end: nil, want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := computeDurationDays(tc.start, tc.end)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeIsActive(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		start any
		end   any
		now   time.Time

		want bool
	}{
		"Inside the window":   {start: start, end: end, now: start.AddDate(0, 0, 7), want: true},
		"Exactly at start":    {start: start, end: end, now: start, want: true},
		"Exactly at end":      {start: start, end: end, now: end, want: true},
		"Before the window":   {start: start, end: end, now: start.Add(-time.Second), want: false},
		"After the window":    {start: start, end: end, now: end.Add(time.Second), want: false},
		"Missing start bound": {start: nil, end: end, now: start, want: false},
		"Missing end bound":   {start: start, end: nil, now: start, want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := computeIsActive(tc.start, tc.end, tc.now)
			assert.Equal(t, tc.want, got)
		})
	}
}
