package payload

import (
	"encoding/json"
	"reflect"
	"time"
)

// ValueKey is the field Acumatica uses to wrap scalar values.
const ValueKey = "value"

// Wrap converts plain field data into Acumatica's wire form. Scalars become
// {"value": x}, nested objects and arrays are walked recursively, and fields
// holding nil or "" are dropped. Zero numbers and false are kept.
func Wrap(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		value = normalize(value)
		if isEmpty(value) {
			continue
		}
		out[key] = wrapField(value)
	}
	return out
}

// WrapValue wraps a single value using the same rules as Wrap. nil and ""
// yield nil.
func WrapValue(value any) any {
	value = normalize(value)
	if isEmpty(value) {
		return nil
	}
	return wrapField(value)
}

func wrapField(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return Wrap(typed)
	case []any:
		return wrapItems(typed)
	default:
		return map[string]any{ValueKey: typed}
	}
}

// wrapItems keeps every element so positions survive; scalar elements,
// including nil, are wrapped in place.
func wrapItems(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		item = normalize(item)
		switch typed := item.(type) {
		case map[string]any:
			out = append(out, Wrap(typed))
		case []any:
			out = append(out, wrapItems(typed))
		default:
			out = append(out, map[string]any{ValueKey: typed})
		}
	}
	return out
}

// Unwrap converts wire data back into plain values. An object carrying a
// "value" key collapses to that value and its other keys are ignored.
func Unwrap(data any) any {
	switch typed := normalize(data).(type) {
	case nil:
		return nil
	case map[string]any:
		if value, ok := typed[ValueKey]; ok {
			return value
		}
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = Unwrap(value)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Unwrap(item)
		}
		return out
	default:
		return typed
	}
}

// Simplify unwraps every top level field of a record.
func Simplify(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = Unwrap(value)
	}
	return out
}

// SimplifyAll applies Simplify to every object in a list response and
// unwraps any other element.
func SimplifyAll(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		if record, ok := item.(map[string]any); ok {
			out[i] = Simplify(record)
			continue
		}
		out[i] = Unwrap(item)
	}
	return out
}

// normalize maps Go values onto the JSON shapes the codec walks: objects
// become map[string]any and lists become []any. Scalars are returned as is.
func normalize(value any) any {
	switch typed := value.(type) {
	case nil, string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number, time.Time:
		return typed
	case map[string]any, []any:
		return typed
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(typed, &decoded); err != nil {
			return string(typed)
		}
		return decoded
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Map && rv.IsNil() {
			return nil
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return value
		}
		var decoded any
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			return value
		}
		return decoded
	}
	return value
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	}
	return false
}
