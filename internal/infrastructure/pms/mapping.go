package pms

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ordered-fallback field lookup over raw PMS JSON. Every adapter's mapping
// functions are built on these helpers: each canonical field is resolved by
// trying a list of candidate keys in order and falling back to a documented
// default when none is present. Absent or malformed fields are treated as
// missing, never as errors; callers decide the default and may log that a
// fallback was used.

// decodeObject unmarshals a JSON object into a generic map. Numbers are kept
// as json.Number so integer IDs survive without float rounding.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// decodeObjectArray unmarshals a top-level JSON array of objects.
func decodeObjectArray(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var arr []map[string]any
	if err := dec.Decode(&arr); err != nil {
		return nil, err
	}
	return arr, nil
}

// stringField returns the first candidate key holding a non-empty string.
// Numeric values are rendered as strings, since PMSs disagree on whether
// identifiers are numbers or strings.
func stringField(raw map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val, true
			}
		case json.Number:
			return val.String(), true
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64), true
		}
	}
	return "", false
}

// intField returns the first candidate key parseable as an integer.
func intField(raw map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case json.Number:
			if n, err := val.Int64(); err == nil {
				return int(n), true
			}
		case float64:
			return int(val), true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// boolField returns the first candidate key holding a boolean. Numeric 0/1
// and the strings "true"/"false"/"1"/"0" are accepted, since several PMSs
// encode flags that way.
func boolField(raw map[string]any, keys ...string) (bool, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case bool:
			return val, true
		case json.Number:
			if n, err := val.Int64(); err == nil {
				return n != 0, true
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "true", "1", "yes":
				return true, true
			case "false", "0", "no":
				return false, true
			}
		}
	}
	return false, false
}

// decimalField returns the first candidate key parseable as a decimal.
// String-encoded numbers are parsed explicitly; unparseable values count as
// missing rather than silently becoming zero.
func decimalField(raw map[string]any, keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case json.Number:
			if d, err := decimal.NewFromString(val.String()); err == nil {
				return d, true
			}
		case float64:
			return decimal.NewFromFloat(val), true
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(val)); err == nil {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

// timeLayouts are the timestamp formats observed across the integrated PMSs.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// timeField returns the first candidate key parseable as a timestamp.
func timeField(raw map[string]any, keys ...string) (time.Time, bool) {
	s, ok := stringField(raw, keys...)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateField returns the first candidate key parseable as a calendar date,
// truncated to midnight UTC.
func dateField(raw map[string]any, keys ...string) (time.Time, bool) {
	t, ok := timeField(raw, keys...)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// objectSlice returns the first candidate key holding an array of objects.
func objectSlice(raw map[string]any, keys ...string) ([]map[string]any, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(arr))
		for _, item := range arr {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out, true
	}
	return nil, false
}

// stringSlice returns the first candidate key holding an array of strings.
func stringSlice(raw map[string]any, keys ...string) ([]string, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// nestedObject returns a nested object under the first present candidate key.
func nestedObject(raw map[string]any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		if obj, ok := raw[key].(map[string]any); ok {
			return obj, true
		}
	}
	return nil, false
}

// rawJSON re-encodes the raw object for audit retention.
func rawJSON(raw map[string]any) string {
	b, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	return string(b)
}
