package odata

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Clause is one equality term of a $filter expression.
type Clause struct {
	Field string
	Value any
}

func Eq(field string, value any) Clause {
	return Clause{Field: field, Value: value}
}

// BuildFilter joins equality clauses with "and", in the given order. Clauses
// with a nil or "" value, or a value with no OData literal form, are skipped.
func BuildFilter(clauses ...Clause) string {
	parts := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		field := strings.TrimSpace(clause.Field)
		if field == "" {
			continue
		}
		literal, ok := Literal(clause.Value)
		if !ok {
			continue
		}
		parts = append(parts, field+" eq "+literal)
	}
	return strings.Join(parts, " and ")
}

// BuildFilterMap builds a filter from a map, ordering clauses by field name.
func BuildFilterMap(filters map[string]any) string {
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	clauses := make([]Clause, 0, len(fields))
	for _, field := range fields {
		clauses = append(clauses, Eq(field, filters[field]))
	}
	return BuildFilter(clauses...)
}

// Literal renders value as an OData literal. Strings are single-quoted with
// embedded quotes doubled; numbers and booleans are bare.
func Literal(value any) (string, bool) {
	switch typed := value.(type) {
	case nil:
		return "", false
	case string:
		if typed == "" {
			return "", false
		}
		return "'" + strings.ReplaceAll(typed, "'", "''") + "'", true
	case bool:
		return strconv.FormatBool(typed), true
	case json.Number:
		return typed.String(), true
	case decimal.Decimal:
		return typed.String(), true
	case *decimal.Decimal:
		if typed == nil {
			return "", false
		}
		return typed.String(), true
	case time.Time:
		if typed.IsZero() {
			return "", false
		}
		return "datetimeoffset'" + typed.UTC().Format(time.RFC3339) + "'", true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32), true
	case fmt.Stringer:
		return Literal(typed.String())
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.String:
		return Literal(rv.String())
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Pointer:
		if rv.IsNil() {
			return "", false
		}
		return Literal(rv.Elem().Interface())
	}
	return "", false
}
