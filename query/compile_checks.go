package query

import (
	"github.com/goliatone/go-acumatica/resources"
	"github.com/goliatone/go-acumatica/webhooks"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetEntityMessage, map[string]any]                     = (*GetEntityQuery)(nil)
	_ gocmd.Querier[ListEntitiesMessage, []map[string]any]                = (*ListEntitiesQuery)(nil)
	_ gocmd.Querier[RunInquiryMessage, []map[string]any]                  = (*RunInquiryQuery)(nil)
	_ gocmd.Querier[ClassifyNotificationMessage, webhooks.Classification] = (*ClassifyNotificationQuery)(nil)

	_ EntityReader = (*resources.Service)(nil)
)
