package gojob

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDWebhookEvent = "acumatica.webhook.event"

	scriptWebhookEvent = "acumatica/webhook/event"
	dedupDrop          = "drop"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps one classified webhook record to a go-job message.
// index is the record position inside its notification and keeps the
// idempotency key unique per row.
func ToExecutionMessage(record webhooks.EventRecord, index int) *job.ExecutionMessage {
	params := map[string]any{
		"event":           string(record.Event),
		"action":          record.Action,
		"query":           record.Query,
		"company_id":      record.CompanyID,
		"notification_id": record.NotificationID,
		"timestamp":       record.Timestamp,
	}
	if record.Data != nil {
		params["data"] = record.Data
	}
	if record.Raw != nil {
		params["raw"] = copyAnyMap(record.Raw)
	}
	msg := &job.ExecutionMessage{
		JobID:      JobIDWebhookEvent,
		ScriptPath: scriptWebhookEvent,
		Parameters: params,
	}
	if id := strings.TrimSpace(record.NotificationID); id != "" {
		msg.IdempotencyKey = id + ":" + record.Action + ":" + strconv.Itoa(index)
		msg.DedupPolicy = job.DeduplicationPolicy(dedupDrop)
	}
	return msg
}

// FromExecutionMessage maps a go-job message back into a webhook record.
func FromExecutionMessage(msg *job.ExecutionMessage) (webhooks.EventRecord, error) {
	if msg == nil {
		return webhooks.EventRecord{}, core.NewBadInputError("gojob: execution message is required", nil)
	}
	if strings.TrimSpace(msg.JobID) != JobIDWebhookEvent {
		return webhooks.EventRecord{}, core.NewBadInputError("gojob: unexpected job id", map[string]any{
			"job_id": msg.JobID,
		})
	}
	params := msg.Parameters
	record := webhooks.EventRecord{
		Event:          webhooks.Event(stringParam(params, "event")),
		Action:         stringParam(params, "action"),
		Query:          stringParam(params, "query"),
		CompanyID:      stringParam(params, "company_id"),
		NotificationID: stringParam(params, "notification_id"),
		Timestamp:      stringParam(params, "timestamp"),
		Data:           params["data"],
	}
	if raw, ok := params["raw"].(map[string]any); ok {
		record.Raw = copyAnyMap(raw)
	}
	return record, nil
}

// EventSink publishes classified webhook records onto a go-job queue, one
// message per record.
type EventSink struct {
	enqueuer queue.Enqueuer
}

func NewEventSink(enqueuer queue.Enqueuer) *EventSink {
	return &EventSink{enqueuer: enqueuer}
}

func (s *EventSink) Publish(ctx context.Context, records []webhooks.EventRecord) error {
	if s == nil || s.enqueuer == nil {
		return core.NewBadInputError("gojob: enqueuer is not configured", nil)
	}
	for i, record := range records {
		if err := s.enqueuer.Enqueue(ctx, ToExecutionMessage(record, i)); err != nil {
			return err
		}
	}
	return nil
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

// Event decodes the delivered message into a webhook record.
func (d *DeliveryAdapter) Event() (webhooks.EventRecord, error) {
	if d == nil || d.delivery == nil {
		return webhooks.EventRecord{}, errDeliveryNotConfigured()
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return errDeliveryNotConfigured()
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts queue.NackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts queue.NackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return errDeliveryNotConfigured()
	}
	return d.delivery.Nack(ctx, d.policy.NormalizeAttempt(opts, attempt))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (*DeliveryAdapter, error) {
	if a == nil || a.dequeuer == nil {
		return nil, core.NewBadInputError("gojob: dequeuer is not configured", nil)
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// LoggingHook reports worker lifecycle events for webhook jobs.
type LoggingHook struct {
	log core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{log: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.logger().Debug("acumatica job started", eventArgs(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.logger().Info("acumatica job completed", eventArgs(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.logger().Error("acumatica job failed", eventArgs(event)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.logger().Warn("acumatica job retry scheduled", eventArgs(event)...)
}

func (h *LoggingHook) logger() core.Logger {
	if h == nil || h.log == nil {
		return glog.Nop()
	}
	return h.log
}

func eventArgs(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	args := []any{"attempt", event.Attempt}
	if message != nil {
		args = append(args, "job_id", message.JobID, "idempotency_key", message.IdempotencyKey)
	}
	if event.Delay > 0 {
		args = append(args, "delay", event.Delay.String())
	}
	if event.Duration > 0 {
		args = append(args, "duration", event.Duration.String())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	return args
}

func errDeliveryNotConfigured() error {
	return core.NewBadInputError("gojob: delivery is not configured", nil)
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return value
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ webhooks.EventSink = (*EventSink)(nil)
	_ worker.Hook        = (*LoggingHook)(nil)
)
