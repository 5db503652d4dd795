package scraper

import (
	"time"

	"github.com/bundlefeed/bundlefeed/internal/constants"
)

// Column classes of the flattened product rows. The names follow the source
// payload, including its pipe-suffixed typed columns and the dotted keys
// produced by flattening.
var (
	datetimeColumns = []string{"start_date|datetime", "end_date|datetime"}

	jsonColumns = []string{"hero_highlights", "hover_highlights", "highlights"}

	textColumns = []string{
		"machine_name",
		"marketing_blurb",
		"hover_title",
		"product_url",
		"category",
		"author",
		"tile_name",
		"tile_short_name",
		"tile_stamp",
		"short_marketing_blurb",
		"tile_logo",
	}
)

// flatten converts a nested product descriptor into a flat row, joining
// nested object keys with dots. List values are kept whole.
func flatten(product map[string]any) map[string]any {
	row := make(map[string]any, len(product))
	flattenInto(row, "", product)
	return row
}

func flattenInto(row map[string]any, prefix string, value map[string]any) {
	for key, v := range value {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(row, name, child)
			continue
		}
		row[name] = v
	}
}

// normalizeProducts flattens each product descriptor and applies the
// per-column transforms: empty strings to nil, datetime parsing, highlight
// serialization, text trimming, URL absolutization and numeric coercion.
// Derived columns duration_days and is_active are computed against now.
//
// The result is total: a malformed value becomes nil, never an error.
// Columns that end up nil on every row are dropped.
func normalizeProducts(products []map[string]any, now time.Time) []map[string]any {
	if len(products) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(products))
	for _, product := range products {
		rows = append(rows, flatten(product))
	}

	for _, row := range rows {
		for key, value := range row {
			if value == "" {
				row[key] = nil
			}
		}

		for _, column := range datetimeColumns {
			if value, ok := row[column]; ok {
				row[column] = parseDatetime(value)
			}
		}
		for _, column := range jsonColumns {
			if value, ok := row[column]; ok {
				row[column] = serializeList(value)
			}
		}
		for _, column := range textColumns {
			if value, ok := row[column]; ok {
				row[column] = normalizeText(value)
			}
		}

		if value, ok := row["product_url"].(string); ok {
			row["product_url"] = absoluteURL(value, constants.BaseURL)
		}
		if value, ok := row["tile_logo"].(string); ok {
			row["tile_logo"] = absoluteURL(value, constants.BaseURL)
		}
		if value, ok := row["bundles_sold|decimal"]; ok {
			row["bundles_sold|decimal"] = safeFloat(value)
		}

		start, end := row["start_date|datetime"], row["end_date|datetime"]
		row["duration_days"] = computeDurationDays(start, end)
		row["is_active"] = computeIsActive(start, end, now)
	}

	dropEmptyColumns(rows)
	return rows
}

// dropEmptyColumns removes columns that hold nil on every row.
func dropEmptyColumns(rows []map[string]any) {
	live := map[string]bool{}
	for _, row := range rows {
		for key, value := range row {
			if value != nil {
				live[key] = true
			}
		}
	}

	for _, row := range rows {
		for key := range row {
			if !live[key] {
				delete(row, key)
			}
		}
	}
}
