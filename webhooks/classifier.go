package webhooks

import (
	"strings"
	"time"
)

type Event string

const (
	EventAll                  Event = "all"
	EventUnknown              Event = "unknown"
	EventCustomerCreated      Event = "customer.created"
	EventCustomerUpdated      Event = "customer.updated"
	EventSalesOrderCreated    Event = "salesOrder.created"
	EventSalesOrderUpdated    Event = "salesOrder.updated"
	EventSalesOrderShipped    Event = "salesOrder.shipped"
	EventInvoiceCreated       Event = "invoice.created"
	EventInvoiceReleased      Event = "invoice.released"
	EventPaymentReceived      Event = "payment.received"
	EventShipmentConfirmed    Event = "shipment.confirmed"
	EventItemUpdated          Event = "item.updated"
	EventVendorCreated        Event = "vendor.created"
	EventPurchaseOrderCreated Event = "purchaseOrder.created"
	EventBillCreated          Event = "bill.created"
)

const (
	ActionInserted     = "inserted"
	ActionDeleted      = "deleted"
	ActionNotification = "notification"
)

// Events lists every event a notification can be classified as, plus
// EventAll.
func Events() []Event {
	return []Event{
		EventCustomerCreated,
		EventCustomerUpdated,
		EventSalesOrderCreated,
		EventSalesOrderUpdated,
		EventSalesOrderShipped,
		EventInvoiceCreated,
		EventInvoiceReleased,
		EventPaymentReceived,
		EventShipmentConfirmed,
		EventItemUpdated,
		EventVendorCreated,
		EventPurchaseOrderCreated,
		EventBillCreated,
		EventUnknown,
		EventAll,
	}
}

// ParseEvent accepts a known event name; an empty string selects EventAll.
func ParseEvent(value string) (Event, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return EventAll, true
	}
	for _, event := range Events() {
		if string(event) == value {
			return event, true
		}
	}
	return "", false
}

type eventRule struct {
	matches  func(query string) bool
	classify func(query string, inserted int) Event
}

func contains(needles ...string) func(string) bool {
	return func(query string) bool {
		for _, needle := range needles {
			if strings.Contains(query, needle) {
				return true
			}
		}
		return false
	}
}

func fixed(event Event) func(string, int) Event {
	return func(string, int) Event { return event }
}

// Rules are evaluated in order; the first match wins.
var eventRules = []eventRule{
	{
		matches: contains("customer"),
		classify: func(_ string, inserted int) Event {
			if inserted > 0 {
				return EventCustomerCreated
			}
			return EventCustomerUpdated
		},
	},
	{
		matches: contains("salesorder"),
		classify: func(query string, inserted int) Event {
			if strings.Contains(query, "ship") {
				return EventSalesOrderShipped
			}
			if inserted > 0 {
				return EventSalesOrderCreated
			}
			return EventSalesOrderUpdated
		},
	},
	{
		matches: contains("invoice"),
		classify: func(query string, _ int) Event {
			if strings.Contains(query, "release") {
				return EventInvoiceReleased
			}
			return EventInvoiceCreated
		},
	},
	{matches: contains("payment"), classify: fixed(EventPaymentReceived)},
	{matches: contains("shipment"), classify: fixed(EventShipmentConfirmed)},
	{matches: contains("item", "stock"), classify: fixed(EventItemUpdated)},
	{matches: contains("vendor"), classify: fixed(EventVendorCreated)},
	{matches: contains("purchaseorder"), classify: fixed(EventPurchaseOrderCreated)},
	{matches: contains("bill"), classify: fixed(EventBillCreated)},
}

// DetectEvent infers the business event from a saved query name and the
// number of inserted rows.
func DetectEvent(query string, insertedCount int) Event {
	lowered := strings.ToLower(query)
	for _, rule := range eventRules {
		if rule.matches(lowered) {
			return rule.classify(lowered, insertedCount)
		}
	}
	return EventUnknown
}

type ClassifyOptions struct {
	// Event filters the output; empty or EventAll accepts every event.
	Event          Event
	IncludeDeleted bool
	Now            func() time.Time
}

type EventRecord struct {
	Event          Event          `json:"event"`
	Action         string         `json:"action"`
	Query          string         `json:"query"`
	CompanyID      string         `json:"companyId"`
	NotificationID string         `json:"notificationId"`
	Timestamp      string         `json:"timestamp"`
	Data           any            `json:"data,omitempty"`
	Raw            map[string]any `json:"raw,omitempty"`
}

type Classification struct {
	Event   Event
	Matched bool
	Records []EventRecord
}

// Classify maps a notification to event records. A filtered-out notification
// yields Matched=false and no records; a matching notification always yields
// at least one record.
func Classify(n Notification, opts ClassifyOptions) Classification {
	event := DetectEvent(n.Query, len(n.Inserted))
	out := Classification{Event: event, Records: []EventRecord{}}
	if opts.Event != "" && opts.Event != EventAll && opts.Event != event {
		return out
	}
	out.Matched = true

	timestamp := n.TimeStamp
	if timestamp == "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		timestamp = now().UTC().Format(time.RFC3339)
	}
	base := EventRecord{
		Event:          event,
		Query:          n.Query,
		CompanyID:      n.CompanyID,
		NotificationID: n.ID,
		Timestamp:      timestamp,
	}

	for _, row := range n.Inserted {
		record := base
		record.Action = ActionInserted
		record.Data = row
		out.Records = append(out.Records, record)
	}
	if opts.IncludeDeleted {
		for _, row := range n.Deleted {
			record := base
			record.Action = ActionDeleted
			record.Data = row
			out.Records = append(out.Records, record)
		}
	}
	if len(out.Records) == 0 {
		record := base
		record.Action = ActionNotification
		record.Raw = n.Raw
		if record.Raw == nil {
			record.Raw = map[string]any{}
		}
		out.Records = append(out.Records, record)
	}
	return out
}
