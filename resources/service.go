package resources

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/odata"
	"github.com/goliatone/go-acumatica/payload"
)

// Executor is the subset of core.Client the resource service drives.
type Executor interface {
	Request(ctx context.Context, method string, endpoint string, body any, query map[string]string) (any, error)
	RequestAllItems(ctx context.Context, method string, endpoint string, body any, query map[string]string, limit int) ([]any, error)
	InvokeAction(ctx context.Context, endpoint string, identity core.EntityIdentity, action string, params map[string]any) (any, error)
	InvokeActionAndWait(ctx context.Context, endpoint string, identity core.EntityIdentity, action string, params map[string]any, opts core.PollOptions) (any, error)
}

// ReadOptions shape a single record response.
type ReadOptions struct {
	Select []string
	Expand []string
	// Raw keeps the {"value": x} wrappers in the result.
	Raw bool
}

// ListOptions shape a list request. Filter is used verbatim; Filters are
// equality clauses joined with "and" after it.
type ListOptions struct {
	Filter  string
	Filters map[string]any
	Select  []string
	Expand  []string
	OrderBy string
	// Limit caps the number of records; zero or less fetches every page.
	Limit  int
	Params map[string]string
	Raw    bool
}

// InvokeOptions control action invocation. Wait polls long running actions
// to completion.
type InvokeOptions struct {
	Wait bool
	Poll core.PollOptions
}

// Service runs create/read/update/delete and action calls for resource
// descriptors. Records go in as plain maps and are wrapped on the way out;
// responses are unwrapped unless Raw is set.
type Service struct {
	client  Executor
	catalog *Catalog
}

func NewService(client Executor, catalog *Catalog) *Service {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Service{client: client, catalog: catalog}
}

func (s *Service) Catalog() *Catalog {
	if s == nil {
		return nil
	}
	return s.catalog
}

// Resolve looks up a resource by name in the service catalog.
func (s *Service) Resolve(name string) (Resource, error) {
	if s == nil {
		return Resource{}, core.NewBadInputError("resources: service is nil", nil)
	}
	return s.catalog.Resolve(name)
}

// Get reads one record by its key values.
func (s *Service) Get(ctx context.Context, resource Resource, keys []string, opts ReadOptions) (map[string]any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if resource.LookupField != "" {
		return s.lookup(ctx, resource, keys, opts)
	}
	path, err := resource.Path(keys...)
	if err != nil {
		return nil, err
	}
	query := odata.NewQuery().Select(opts.Select...).Expand(opts.Expand...).Values()
	out, err := s.client.Request(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return nil, err
	}
	return shapeRecord(out, opts.Raw), nil
}

// List reads records page by page. When a page fails, the records read so far
// are returned with the error.
func (s *Service) List(ctx context.Context, resource Resource, opts ListOptions) ([]map[string]any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resource.Endpoint) == "" {
		return nil, core.NewBadInputError("resources: resource endpoint is required", map[string]any{
			"resource": resource.Name,
		})
	}
	query := odata.NewQuery().
		Filter(joinFilters(opts.Filter, odata.BuildFilterMap(opts.Filters))).
		Select(opts.Select...).
		Expand(opts.Expand...).
		OrderBy(opts.OrderBy)
	for key, value := range opts.Params {
		query.Param(key, value)
	}

	items, err := s.client.RequestAllItems(ctx, http.MethodGet, resource.Endpoint, nil, query.Values(), opts.Limit)
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		records = append(records, shapeRecord(item, opts.Raw))
	}
	return records, err
}

// Put creates or updates a record. Acumatica upserts on PUT, matching on the
// key fields present in record.
func (s *Service) Put(ctx context.Context, resource Resource, record map[string]any, opts ReadOptions) (map[string]any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	cleaned := payload.Clean(record)
	if len(cleaned) == 0 {
		return nil, core.NewBadInputError("resources: record has no fields", map[string]any{
			"resource": resource.Name,
		})
	}
	query := odata.NewQuery().Select(opts.Select...).Expand(opts.Expand...).Values()
	out, err := s.client.Request(ctx, http.MethodPut, resource.Endpoint, payload.Wrap(cleaned), query)
	if err != nil {
		return nil, err
	}
	return shapeRecord(out, opts.Raw), nil
}

// Delete removes a record. Filter-addressed resources are deleted through
// their internal id.
func (s *Service) Delete(ctx context.Context, resource Resource, keys []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	path := ""
	if resource.LookupField != "" {
		id, err := s.internalID(ctx, resource, keys)
		if err != nil {
			return err
		}
		path = strings.TrimRight(resource.Endpoint, "/") + "/" + id
	} else {
		var err error
		if path, err = resource.Path(keys...); err != nil {
			return err
		}
	}
	_, err := s.client.Request(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// Invoke runs a named action against the record identified by keys. params are
// plain values and are wrapped before sending.
func (s *Service) Invoke(
	ctx context.Context,
	resource Resource,
	operation string,
	keys []string,
	params map[string]any,
	opts InvokeOptions,
) (any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	action, ok := resource.Action(operation)
	if !ok {
		return nil, core.NewBadInputError("resources: unsupported action "+operation, map[string]any{
			"resource":  resource.Name,
			"operation": operation,
			"supported": strings.Join(resource.Operations(), ","),
		})
	}

	identity, err := s.identity(ctx, resource, action, keys)
	if err != nil {
		return nil, err
	}
	wrapped := payload.Wrap(params)
	if opts.Wait {
		return s.client.InvokeActionAndWait(ctx, resource.Endpoint, identity, action.Name, wrapped, opts.Poll)
	}
	return s.client.InvokeAction(ctx, resource.Endpoint, identity, action.Name, wrapped)
}

// RunInquiry reads the rows of a generic inquiry.
func (s *Service) RunInquiry(ctx context.Context, name string, opts ListOptions) ([]map[string]any, error) {
	if strings.TrimSpace(name) == "" {
		return nil, core.NewBadInputError("resources: inquiry name is required", nil)
	}
	return s.List(ctx, Inquiry(name), opts)
}

func (s *Service) identity(ctx context.Context, resource Resource, action Action, keys []string) (core.EntityIdentity, error) {
	if action.Identity == IdentityLookup {
		id, err := s.internalID(ctx, resource, keys)
		if err != nil {
			return core.EntityIdentity{}, err
		}
		return core.EntityByID(id), nil
	}
	if resource.LookupField == "" {
		if _, err := resource.Path(keys...); err != nil {
			return core.EntityIdentity{}, err
		}
	}
	return core.EntityByKeys(resource.KeyRecord(keys...)), nil
}

func (s *Service) internalID(ctx context.Context, resource Resource, keys []string) (string, error) {
	record, err := s.Get(ctx, resource, keys, ReadOptions{Raw: true})
	if err != nil {
		return "", err
	}
	id := payload.FieldString(record, "id")
	if id == "" {
		return "", core.NewNotFoundError("resources: record has no internal id", map[string]any{
			"resource": resource.Name,
			"keys":     strings.Join(keys, "/"),
		})
	}
	return id, nil
}

func (s *Service) lookup(ctx context.Context, resource Resource, keys []string, opts ReadOptions) (map[string]any, error) {
	if len(keys) != 1 || strings.TrimSpace(keys[0]) == "" {
		return nil, core.NewBadInputError("resources: "+resource.LookupField+" is required", map[string]any{
			"resource": resource.Name,
		})
	}
	expand := opts.Expand
	if len(expand) == 0 {
		expand = resource.Expand
	}
	query := odata.NewQuery().
		Where(odata.Eq(resource.LookupField, strings.TrimSpace(keys[0]))).
		Select(opts.Select...).
		Expand(expand...).
		Values()
	out, err := s.client.Request(ctx, http.MethodGet, resource.Endpoint, nil, query)
	if err != nil {
		return nil, err
	}
	if list, ok := out.([]any); ok {
		if len(list) == 0 {
			return nil, core.NewNotFoundError("resources: "+resource.Name+" '"+keys[0]+"' not found", map[string]any{
				"resource": resource.Name,
				"key":      keys[0],
			})
		}
		out = list[0]
	}
	return shapeRecord(out, opts.Raw), nil
}

func (s *Service) ready() error {
	if s == nil || s.client == nil {
		return core.NewBadInputError("resources: client is required", nil)
	}
	return nil
}

func shapeRecord(value any, raw bool) map[string]any {
	record, ok := value.(map[string]any)
	if !ok {
		if value == nil {
			return map[string]any{}
		}
		return map[string]any{"value": payload.Unwrap(value)}
	}
	if raw {
		return record
	}
	return payload.Simplify(record)
}

func joinFilters(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " and ")
}
