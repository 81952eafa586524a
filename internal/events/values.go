package events

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"ordernotify/internal/types"
)

// DecodeFields converts a Firestore REST "fields" map into plain Go values.
func DecodeFields(fields map[string]map[string]any) (types.Document, error) {
	doc := make(types.Document, len(fields))
	for name, v := range fields {
		val, err := DecodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		doc[name] = val
	}
	return doc, nil
}

// DecodeValue converts one Firestore typed value. Integers decode to int64,
// doubles to float64, timestamps to time.Time, maps to map[string]any and
// arrays to []any, matching what the Firestore client library returns.
func DecodeValue(v map[string]any) (any, error) {
	if len(v) != 1 {
		return nil, fmt.Errorf("typed value must have exactly one key, got %d", len(v))
	}
	for kind, raw := range v {
		switch kind {
		case "nullValue":
			return nil, nil
		case "booleanValue":
			b, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("booleanValue is %T", raw)
			}
			return b, nil
		case "stringValue", "referenceValue":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%s is %T", kind, raw)
			}
			return s, nil
		case "integerValue":
			return decodeInteger(raw)
		case "doubleValue":
			return decodeDouble(raw)
		case "timestampValue":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("timestampValue is %T", raw)
			}
			return time.Parse(time.RFC3339Nano, s)
		case "bytesValue":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("bytesValue is %T", raw)
			}
			return base64.StdEncoding.DecodeString(s)
		case "geoPointValue":
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("geoPointValue is %T", raw)
			}
			return map[string]any{"latitude": m["latitude"], "longitude": m["longitude"]}, nil
		case "mapValue":
			return decodeMap(raw)
		case "arrayValue":
			return decodeArray(raw)
		default:
			return nil, fmt.Errorf("unknown value type %q", kind)
		}
	}
	return nil, nil
}

func decodeInteger(raw any) (int64, error) {
	switch n := raw.(type) {
	case string:
		return strconv.ParseInt(n, 10, 64)
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("integerValue is %T", raw)
	}
}

func decodeDouble(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case string:
		// NaN and Infinity arrive as strings.
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("doubleValue is %T", raw)
	}
}

func decodeMap(raw any) (map[string]any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("mapValue is %T", raw)
	}
	fields, _ := m["fields"].(map[string]any)
	out := make(map[string]any, len(fields))
	for name, fv := range fields {
		typed, ok := fv.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s is %T", name, fv)
		}
		val, err := DecodeValue(typed)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = val
	}
	return out, nil
}

func decodeArray(raw any) ([]any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arrayValue is %T", raw)
	}
	values, _ := m["values"].([]any)
	out := make([]any, 0, len(values))
	for i, ev := range values {
		typed, ok := ev.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is %T", i, ev)
		}
		val, err := DecodeValue(typed)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, val)
	}
	return out, nil
}
