package resources

import (
	"net/url"
	"sort"
	"strings"

	"github.com/goliatone/go-acumatica/core"
)

// IdentityMode selects how an action names its target record.
type IdentityMode string

const (
	// IdentityKeys sends the wrapped key fields, e.g. {"Type":{"value":"INV"}}.
	IdentityKeys IdentityMode = "keys"
	// IdentityLookup reads the record first and sends its internal id.
	IdentityLookup IdentityMode = "lookup"
)

// Action is a named entity action exposed by a resource.
type Action struct {
	Name     string
	Identity IdentityMode
}

// Resource describes one entity endpoint: where it lives, which fields make up
// its natural key, and which actions it supports. Resources carry no field
// catalog; records travel as plain maps.
type Resource struct {
	Name      string
	Endpoint  string
	KeyFields []string
	// LookupField, when set, resolves records through a $filter on this field
	// instead of a key path. Deletes then go through the internal id.
	LookupField string
	Expand      []string
	Actions     map[string]Action
}

// Path returns the record path built from key values, each segment escaped.
func (r Resource) Path(keys ...string) (string, error) {
	if r.LookupField != "" {
		return "", core.NewBadInputError("resources: "+r.Name+" is addressed by filter, not by key path", map[string]any{
			"resource": r.Name,
		})
	}
	if len(keys) != len(r.KeyFields) {
		return "", core.NewBadInputError("resources: wrong number of key values", map[string]any{
			"resource":   r.Name,
			"key_fields": strings.Join(r.KeyFields, ","),
			"got":        len(keys),
		})
	}
	segments := make([]string, 0, len(keys)+1)
	segments = append(segments, strings.TrimRight(r.Endpoint, "/"))
	for i, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			return "", core.NewBadInputError("resources: key value is required", map[string]any{
				"resource": r.Name,
				"field":    r.KeyFields[i],
			})
		}
		segments = append(segments, url.PathEscape(key))
	}
	return strings.Join(segments, "/"), nil
}

// KeyRecord maps key values onto the resource's key fields.
func (r Resource) KeyRecord(keys ...string) map[string]any {
	fields := r.KeyFields
	if r.LookupField != "" {
		fields = []string{r.LookupField}
	}
	out := make(map[string]any, len(fields))
	for i, field := range fields {
		if i < len(keys) {
			out[field] = strings.TrimSpace(keys[i])
		}
	}
	return out
}

// Action returns the named action, matching the operation name
// case-insensitively.
func (r Resource) Action(operation string) (Action, bool) {
	operation = strings.TrimSpace(operation)
	if action, ok := r.Actions[operation]; ok {
		return action, true
	}
	for name, action := range r.Actions {
		if strings.EqualFold(name, operation) {
			return action, true
		}
	}
	return Action{}, false
}

// Operations lists action operation names in sorted order.
func (r Resource) Operations() []string {
	out := make([]string, 0, len(r.Actions))
	for name := range r.Actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Inquiry describes a generic inquiry exposed on the entity endpoint. Generic
// inquiries are read-only and have no key fields.
func Inquiry(name string) Resource {
	name = strings.Trim(strings.TrimSpace(name), "/")
	return Resource{
		Name:     GenericInquiry.Name,
		Endpoint: "/" + url.PathEscape(name),
	}
}
