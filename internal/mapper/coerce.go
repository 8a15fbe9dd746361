package mapper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// coerceRecord projects a raw LLM record onto a table schema. Known columns
// are kept with money and timestamp coercions applied; unknown fields land
// in the metadata JSON column. A missing primary key returns false.
func coerceRecord(raw map[string]any, schema tableSchema) (map[string]any, bool) {
	pk, ok := raw[schema.primaryKey]
	if !ok || fmt.Sprintf("%v", pk) == "" {
		return nil, false
	}

	row := make(map[string]any, len(raw))
	extra := make(map[string]any)

	for key, value := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		if !schema.columns[key] {
			extra[key] = value
			continue
		}

		switch {
		case schema.moneyCols[key]:
			row[key] = coerceMoney(value)
		case schema.timeCols[key]:
			row[key] = coerceTimestamp(value)
		default:
			row[key] = coerceScalar(value)
		}
	}

	if len(extra) > 0 {
		encoded, err := json.Marshal(extra)
		if err == nil {
			row["metadata"] = string(encoded)
		}
	}

	return row, true
}

// coerceMoney renders a monetary value as a two-decimal string. German comma
// decimals and currency markers are tolerated.
func coerceMoney(value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case int:
		return fmt.Sprintf("%d.00", v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', 2, 64)
		}
	case string:
		cleaned := strings.TrimSpace(v)
		cleaned = strings.TrimSuffix(cleaned, "€")
		cleaned = strings.TrimSuffix(cleaned, "EUR")
		cleaned = strings.TrimSpace(cleaned)
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return strconv.FormatFloat(f, 'f', 2, 64)
		}
		return v
	}
	return fmt.Sprintf("%v", value)
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
	"02.01.2006 15:04",
}

// coerceTimestamp renders a timestamp value as an ISO 8601 string. Values
// that parse under no known layout pass through unchanged.
func coerceTimestamp(value any) string {
	s, ok := value.(string)
	if !ok {
		return fmt.Sprintf("%v", value)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}

// coerceScalar serializes sub-objects to JSON strings since the tabular
// backend holds scalars only.
func coerceScalar(value any) any {
	switch value.(type) {
	case map[string]any, []any:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(encoded)
	default:
		return value
	}
}
