package query

import (
	"strings"

	"github.com/goliatone/go-acumatica/resources"
	"github.com/goliatone/go-acumatica/webhooks"
)

const (
	TypeGetEntity            = "acumatica.query.entity.get"
	TypeListEntities         = "acumatica.query.entity.list"
	TypeRunInquiry           = "acumatica.query.inquiry.run"
	TypeClassifyNotification = "acumatica.query.webhook.classify"
)

type GetEntityMessage struct {
	Resource string
	Keys     []string
	Select   []string
	Expand   []string
}

func (GetEntityMessage) Type() string { return TypeGetEntity }

func (m GetEntityMessage) Validate() error {
	if strings.TrimSpace(m.Resource) == "" {
		return queryValidationError("resource", "resource is required")
	}
	if len(m.Keys) == 0 {
		return queryValidationError("keys", "at least one key value is required")
	}
	return nil
}

type ListEntitiesMessage struct {
	Resource string
	Options  resources.ListOptions
}

func (ListEntitiesMessage) Type() string { return TypeListEntities }

func (m ListEntitiesMessage) Validate() error {
	if strings.TrimSpace(m.Resource) == "" {
		return queryValidationError("resource", "resource is required")
	}
	if m.Options.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type RunInquiryMessage struct {
	Name    string
	Options resources.ListOptions
}

func (RunInquiryMessage) Type() string { return TypeRunInquiry }

func (m RunInquiryMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return queryValidationError("name", "inquiry name is required")
	}
	if m.Options.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

// ClassifyNotificationMessage classifies a raw push notification body without
// publishing it. Event is a filter name such as "salesOrder.shipped"; empty
// matches every event.
type ClassifyNotificationMessage struct {
	Body           []byte
	Event          string
	IncludeDeleted bool
}

func (ClassifyNotificationMessage) Type() string { return TypeClassifyNotification }

func (m ClassifyNotificationMessage) Validate() error {
	if len(m.Body) == 0 {
		return queryValidationError("body", "notification body is required")
	}
	if _, ok := webhooks.ParseEvent(m.Event); !ok {
		return queryValidationError("event", "unknown event "+m.Event)
	}
	return nil
}
