package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

const (
	defaultClaimLease  = 30 * time.Second
	defaultMaxAttempts = 8
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	DeliveryID    string
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger tracks publication of each notification. Claim reports
// claimed=false when the delivery is already processed, dead, leased by
// another worker, or not yet due for retry.
type DeliveryLedger interface {
	Claim(ctx context.Context, deliveryID string, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

// Delivery is one inbound HTTP notification.
type Delivery struct {
	Headers    map[string]string
	Body       []byte
	ReceivedAt time.Time
}

type Verifier interface {
	Verify(ctx context.Context, delivery Delivery) error
}

type EventSink interface {
	Publish(ctx context.Context, records []EventRecord) error
}

type EventSinkFunc func(ctx context.Context, records []EventRecord) error

func (f EventSinkFunc) Publish(ctx context.Context, records []EventRecord) error {
	return f(ctx, records)
}

type DeliveryIDExtractor func(n Notification, delivery Delivery) string

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

type Result struct {
	Event      Event
	Matched    bool
	Records    []EventRecord
	DeliveryID string
	Deduped    bool
	Suppressed bool
	Metadata   map[string]any
}

// Processor verifies, classifies and publishes notifications. Ledger, Sink,
// Verifier and Burst are optional; without a Sink records are only returned.
type Processor struct {
	Verifier    Verifier
	Ledger      DeliveryLedger
	Sink        EventSink
	Burst       BurstController
	ExtractID   DeliveryIDExtractor
	RetryPolicy RetryPolicy
	Options     ClassifyOptions
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
	Logger      core.Logger
}

func NewProcessor(ledger DeliveryLedger, sink EventSink, opts ClassifyOptions) *Processor {
	return &Processor{
		Ledger:      ledger,
		Sink:        sink,
		ExtractID:   DefaultDeliveryIDExtractor,
		RetryPolicy: ExponentialRetryPolicy{},
		Options:     opts,
		ClaimLease:  defaultClaimLease,
		MaxAttempts: defaultMaxAttempts,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, delivery Delivery) (Result, error) {
	if p == nil {
		return Result{}, processingError(fmt.Errorf("processor is nil"), "webhooks: processor is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, delivery); err != nil {
			p.logger().Warn("webhook notification rejected", "error", err.Error())
			return Result{}, unauthorizedError(err)
		}
	}

	notification, err := ParseNotification(delivery.Body)
	if err != nil {
		return Result{}, err
	}

	opts := p.Options
	if opts.Now == nil {
		opts.Now = p.now
	}
	classification := Classify(notification, opts)
	result := Result{
		Event:    classification.Event,
		Matched:  classification.Matched,
		Records:  classification.Records,
		Metadata: map[string]any{"query": notification.Query},
	}
	if !classification.Matched || p.Sink == nil {
		return result, nil
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = DefaultDeliveryIDExtractor
	}
	deliveryID := extractor(notification, delivery)
	result.DeliveryID = deliveryID
	result.Metadata["delivery_id"] = deliveryID

	if p.Ledger == nil {
		if err := p.Sink.Publish(ctx, result.Records); err != nil {
			return result, processingError(err, "webhooks: publish event records", result.Metadata)
		}
		return result, nil
	}

	claim, claimed, err := p.Ledger.Claim(ctx, deliveryID, delivery.Body, p.claimLease())
	if err != nil {
		return result, processingError(err, "webhooks: claim delivery", result.Metadata)
	}
	if !claimed {
		result.Deduped = true
		result.Metadata["deduped"] = true
		result.Metadata["status"] = claim.Status
		return result, nil
	}

	if p.Burst != nil {
		decision := p.Burst.Allow(ctx, notification)
		if !decision.Allow {
			if err := p.Ledger.Complete(ctx, claim.ClaimID); err != nil {
				return result, processingError(err, "webhooks: complete suppressed delivery", result.Metadata)
			}
			result.Suppressed = true
			for key, value := range decision.Metadata {
				result.Metadata[key] = value
			}
			return result, nil
		}
	}

	if err := p.Sink.Publish(ctx, result.Records); err != nil {
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(claim.Attempts))
		if failErr := p.Ledger.Fail(ctx, claim.ClaimID, err, nextAttemptAt, p.maxAttempts()); failErr != nil {
			p.logger().Error("webhook delivery failure not recorded", "delivery_id", deliveryID, "error", failErr.Error())
		}
		return result, processingError(err, "webhooks: publish event records", result.Metadata)
	}
	if err := p.Ledger.Complete(ctx, claim.ClaimID); err != nil {
		return result, processingError(err, "webhooks: complete delivery", result.Metadata)
	}
	p.logger().Debug("webhook notification published",
		"delivery_id", deliveryID,
		"event", string(result.Event),
		"records", len(result.Records),
	)
	return result, nil
}

// DefaultDeliveryIDExtractor uses the notification id, then an X-Delivery-Id
// header, then a digest of the body.
func DefaultDeliveryIDExtractor(n Notification, delivery Delivery) string {
	if id := strings.TrimSpace(n.ID); id != "" {
		return id
	}
	if id := headerValue(delivery.Headers, "X-Delivery-Id"); id != "" {
		return id
	}
	sum := sha256.Sum256(delivery.Body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (p *Processor) logger() core.Logger {
	if p == nil || p.Logger == nil {
		return glog.Nop()
	}
	return p.Logger
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return defaultClaimLease
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return defaultMaxAttempts
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
