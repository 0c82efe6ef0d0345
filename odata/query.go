package odata

import (
	"strconv"
	"strings"
)

const (
	ParamFilter  = "$filter"
	ParamExpand  = "$expand"
	ParamSelect  = "$select"
	ParamTop     = "$top"
	ParamSkip    = "$skip"
	ParamOrderBy = "$orderby"
	ParamCustom  = "$custom"
)

// Query assembles OData query parameters. The zero value is ready to use.
type Query struct {
	params map[string]string
}

func NewQuery() *Query {
	return &Query{params: map[string]string{}}
}

func (q *Query) set(key string, value string) *Query {
	if q.params == nil {
		q.params = map[string]string{}
	}
	if strings.TrimSpace(value) == "" {
		delete(q.params, key)
		return q
	}
	q.params[key] = value
	return q
}

// Filter sets a raw $filter expression.
func (q *Query) Filter(expr string) *Query {
	return q.set(ParamFilter, expr)
}

// Where sets $filter from equality clauses.
func (q *Query) Where(clauses ...Clause) *Query {
	return q.set(ParamFilter, BuildFilter(clauses...))
}

func (q *Query) Select(fields ...string) *Query {
	return q.set(ParamSelect, JoinFields(fields...))
}

func (q *Query) Expand(fields ...string) *Query {
	return q.set(ParamExpand, JoinFields(fields...))
}

func (q *Query) Top(n int) *Query {
	if n <= 0 {
		return q.set(ParamTop, "")
	}
	return q.set(ParamTop, strconv.Itoa(n))
}

func (q *Query) Skip(n int) *Query {
	if n <= 0 {
		return q.set(ParamSkip, "")
	}
	return q.set(ParamSkip, strconv.Itoa(n))
}

func (q *Query) OrderBy(expr string) *Query {
	return q.set(ParamOrderBy, expr)
}

// Custom sets $custom for fields outside the default endpoint schema.
func (q *Query) Custom(expr string) *Query {
	return q.set(ParamCustom, expr)
}

// Param sets any other query parameter.
func (q *Query) Param(key string, value string) *Query {
	key = strings.TrimSpace(key)
	if key == "" {
		return q
	}
	return q.set(key, value)
}

// Values returns a copy of the assembled parameters.
func (q *Query) Values() map[string]string {
	out := make(map[string]string, len(q.params))
	for key, value := range q.params {
		out[key] = value
	}
	return out
}

// JoinFields joins non-blank field names with commas, as used by $select and
// $expand.
func JoinFields(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ",")
}
