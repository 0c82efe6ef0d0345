package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const MaxNotificationBytes = 1 << 20

type processor interface {
	Process(ctx context.Context, delivery Delivery) (Result, error)
}

// Handler serves the push notification endpoint. It answers 200 with the JSON
// array of event records, which is empty when the event filter excludes the
// notification.
type Handler struct {
	processor processor
	logger    core.Logger
	now       func() time.Time
}

func NewHandler(p *Processor, logger core.Logger) *Handler {
	if logger == nil {
		logger = glog.Nop()
	}
	return &Handler{
		processor: p,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "ACUMATICA_WEBHOOK_METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxNotificationBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorWebhookBadPayload, "notification body too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrorWebhookBadPayload, "could not read notification body")
		return
	}

	result, err := h.processor.Process(r.Context(), Delivery{
		Headers:    flattenHeader(r.Header),
		Body:       body,
		ReceivedAt: h.now(),
	})
	if err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) && rich.Code > 0 {
			if rich.Code >= http.StatusInternalServerError {
				h.logger.Error("webhook notification failed", "error", err.Error(), "text_code", rich.TextCode)
			}
			writeError(w, rich.Code, rich.TextCode, rich.Message)
			return
		}
		h.logger.Error("webhook notification failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, ErrorWebhookProcessing, "notification processing failed")
		return
	}

	records := result.Records
	if !result.Matched || records == nil {
		records = []EventRecord{}
	}
	h.logger.Info("webhook notification received",
		"event", string(result.Event),
		"matched", result.Matched,
		"records", len(records),
		"deduped", result.Deduped,
	)
	writeJSON(w, http.StatusOK, records)
}

func flattenHeader(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		out[key] = strings.Join(values, ",")
	}
	return out
}

type errorBody struct {
	Error struct {
		TextCode string `json:"text_code"`
		Message  string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, textCode string, message string) {
	var body errorBody
	body.Error.TextCode = textCode
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
