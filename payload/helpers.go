package payload

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const badInputTextCode = "ACUMATICA_BAD_INPUT"

// DateLayout is the date-only format Acumatica accepts for date fields.
const DateLayout = "2006-01-02"

// Field returns the plain value of a wire field.
func Field(record map[string]any, name string) any {
	if record == nil {
		return nil
	}
	return Unwrap(record[name])
}

// FieldString returns a wire field as a string, or "" when absent.
func FieldString(record map[string]any, name string) string {
	value := Field(record, name)
	if value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprint(value)
}

// Clean drops nil and "" values and nested objects left empty. Zero numbers,
// false and arrays are kept as given.
func Clean(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		value = normalize(value)
		if isEmpty(value) {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			cleaned := Clean(nested)
			if len(cleaned) > 0 {
				out[key] = cleaned
			}
			continue
		}
		out[key] = value
	}
	return out
}

// ValidateRequired reports the first field that is missing, nil or "".
func ValidateRequired(data map[string]any, fields ...string) error {
	for _, field := range fields {
		value, ok := data[field]
		if ok {
			value = normalize(value)
		}
		if !ok || isEmpty(value) {
			message := "Missing required field: " + field
			return goerrors.NewValidation(message, goerrors.FieldError{
				Field:   field,
				Message: "is required",
			}).
				WithCode(http.StatusBadRequest).
				WithTextCode(badInputTextCode)
		}
	}
	return nil
}

// ParseLineItems accepts a JSON array string or a list of objects. Blank
// input yields an empty list.
func ParseLineItems(input any) ([]map[string]any, error) {
	switch typed := input.(type) {
	case nil:
		return []map[string]any{}, nil
	case string:
		if strings.TrimSpace(typed) == "" {
			return []map[string]any{}, nil
		}
		var items []map[string]any
		if err := json.Unmarshal([]byte(typed), &items); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "payload: line items are not a json array of objects").
				WithCode(http.StatusBadRequest).
				WithTextCode(badInputTextCode)
		}
		return items, nil
	case []map[string]any:
		return typed, nil
	}

	normalized, ok := normalize(input).([]any)
	if !ok {
		return nil, goerrors.New("payload: line items must be a list", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(badInputTextCode)
	}
	items := make([]map[string]any, 0, len(normalized))
	for i, item := range normalized {
		record, ok := normalize(item).(map[string]any)
		if !ok {
			return nil, goerrors.New(fmt.Sprintf("payload: line item %d is not an object", i), goerrors.CategoryBadInput).
				WithCode(http.StatusBadRequest).
				WithTextCode(badInputTextCode)
		}
		items = append(items, record)
	}
	return items, nil
}

// FormatDate renders t in UTC as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate accepts RFC 3339 timestamps, Acumatica's offset-less timestamps
// and plain dates. ok is false for blank or unparseable input.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", DateLayout} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
