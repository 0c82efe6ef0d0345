package webhooks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorWebhookBadPayload   = "ACUMATICA_WEBHOOK_BAD_PAYLOAD"
	ErrorWebhookUnauthorized = "ACUMATICA_WEBHOOK_UNAUTHORIZED"
	ErrorWebhookProcessing   = "ACUMATICA_WEBHOOK_PROCESSING_FAILED"
)

// Notification is one Acumatica push notification. Inserted and Deleted hold
// the row summaries exactly as received.
type Notification struct {
	Query     string
	Inserted  []any
	Deleted   []any
	ID        string
	TimeStamp string
	CompanyID string
	Raw       map[string]any
}

// ParseNotification decodes a push notification body. The body must be a
// JSON object; missing fields default to empty values.
func ParseNotification(body []byte) (Notification, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return Notification{}, badPayloadError("webhooks: notification body is empty", nil)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Notification{}, badPayloadError("webhooks: notification body must be a JSON object", err)
	}
	if raw == nil {
		return Notification{}, badPayloadError("webhooks: notification body must be a JSON object", nil)
	}
	return NotificationFromMap(raw), nil
}

func NotificationFromMap(raw map[string]any) Notification {
	if raw == nil {
		raw = map[string]any{}
	}
	return Notification{
		Query:     stringField(raw["Query"]),
		Inserted:  rowsField(raw["Inserted"]),
		Deleted:   rowsField(raw["Deleted"]),
		ID:        stringField(raw["Id"]),
		TimeStamp: stringField(raw["TimeStamp"]),
		CompanyID: stringField(raw["CompanyId"]),
		Raw:       raw,
	}
}

func stringField(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case float64:
		return fmt.Sprintf("%v", typed)
	case bool:
		return fmt.Sprintf("%t", typed)
	default:
		return ""
	}
}

func rowsField(value any) []any {
	rows, ok := value.([]any)
	if !ok {
		return []any{}
	}
	return rows
}

func badPayloadError(message string, source error) error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryBadInput, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryBadInput)
	}
	return err.WithCode(http.StatusBadRequest).WithTextCode(ErrorWebhookBadPayload)
}

func unauthorizedError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryAuth, "webhooks: notification verification failed").
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorWebhookUnauthorized)
}

func processingError(source error, message string, metadata map[string]any) error {
	err := goerrors.Wrap(source, goerrors.CategoryOperation, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorWebhookProcessing)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
