package query

import (
	"context"

	"github.com/goliatone/go-acumatica/resources"
	"github.com/goliatone/go-acumatica/webhooks"
)

// EntityReader is the read side of the resource service.
type EntityReader interface {
	Resolve(name string) (resources.Resource, error)
	Get(ctx context.Context, resource resources.Resource, keys []string, opts resources.ReadOptions) (map[string]any, error)
	List(ctx context.Context, resource resources.Resource, opts resources.ListOptions) ([]map[string]any, error)
	RunInquiry(ctx context.Context, name string, opts resources.ListOptions) ([]map[string]any, error)
}

type GetEntityQuery struct {
	reader EntityReader
}

func NewGetEntityQuery(reader EntityReader) *GetEntityQuery {
	return &GetEntityQuery{reader: reader}
}

func (q *GetEntityQuery) Query(ctx context.Context, msg GetEntityMessage) (map[string]any, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: entity reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	resource, err := q.reader.Resolve(msg.Resource)
	if err != nil {
		return nil, err
	}
	return q.reader.Get(ctx, resource, msg.Keys, resources.ReadOptions{Select: msg.Select, Expand: msg.Expand})
}

type ListEntitiesQuery struct {
	reader EntityReader
}

func NewListEntitiesQuery(reader EntityReader) *ListEntitiesQuery {
	return &ListEntitiesQuery{reader: reader}
}

// Query returns the records read so far together with any page error.
func (q *ListEntitiesQuery) Query(ctx context.Context, msg ListEntitiesMessage) ([]map[string]any, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: entity reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	resource, err := q.reader.Resolve(msg.Resource)
	if err != nil {
		return nil, err
	}
	return q.reader.List(ctx, resource, msg.Options)
}

type RunInquiryQuery struct {
	reader EntityReader
}

func NewRunInquiryQuery(reader EntityReader) *RunInquiryQuery {
	return &RunInquiryQuery{reader: reader}
}

func (q *RunInquiryQuery) Query(ctx context.Context, msg RunInquiryMessage) ([]map[string]any, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: entity reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.RunInquiry(ctx, msg.Name, msg.Options)
}

// ClassifyNotificationQuery runs the webhook classifier over a stored or
// replayed notification body.
type ClassifyNotificationQuery struct{}

func NewClassifyNotificationQuery() *ClassifyNotificationQuery {
	return &ClassifyNotificationQuery{}
}

func (q *ClassifyNotificationQuery) Query(_ context.Context, msg ClassifyNotificationMessage) (webhooks.Classification, error) {
	if err := msg.Validate(); err != nil {
		return webhooks.Classification{}, err
	}
	notification, err := webhooks.ParseNotification(msg.Body)
	if err != nil {
		return webhooks.Classification{}, err
	}
	event, _ := webhooks.ParseEvent(msg.Event)
	return webhooks.Classify(notification, webhooks.ClassifyOptions{
		Event:          event,
		IncludeDeleted: msg.IncludeDeleted,
	}), nil
}
