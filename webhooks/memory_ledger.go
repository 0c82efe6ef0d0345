package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDeliveryLedger is a process-local DeliveryLedger, suitable for a
// single receiver instance.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	claims  map[string]string
	leases  map[string]time.Time
	now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		records: map[string]DeliveryRecord{},
		claims:  map[string]string{},
		leases:  map[string]time.Time{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryDeliveryLedger) WithClock(now func() time.Time) *MemoryDeliveryLedger {
	if now != nil {
		l.now = now
	}
	return l
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery id is required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()

	record, exists := l.records[deliveryID]
	if !exists {
		record = DeliveryRecord{
			ID:         uuid.NewString(),
			DeliveryID: deliveryID,
			Status:     DeliveryStatusPending,
			CreatedAt:  now,
		}
	}
	if !claimable(record, l.leases[deliveryID], now) {
		return record, false, nil
	}

	if record.ClaimID != "" {
		delete(l.claims, record.ClaimID)
	}
	record.ClaimID = uuid.NewString()
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	l.records[deliveryID] = record
	l.claims[record.ClaimID] = deliveryID
	l.leases[deliveryID] = now.Add(lease)
	return record, true, nil
}

func claimable(record DeliveryRecord, leaseUntil time.Time, now time.Time) bool {
	switch record.Status {
	case DeliveryStatusPending:
		return true
	case DeliveryStatusRetryReady:
		return record.NextAttemptAt == nil || !record.NextAttemptAt.After(now)
	case DeliveryStatusProcessing:
		return !leaseUntil.After(now)
	default:
		return false
	}
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[strings.TrimSpace(deliveryID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %q not found", deliveryID)
	}
	return record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	deliveryID, record, err := l.claimed(claimID)
	if err != nil {
		return err
	}
	record.Status = DeliveryStatusProcessed
	record.LastError = ""
	record.UpdatedAt = l.now().UTC()
	l.release(deliveryID, record)
	return nil
}

func (l *MemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	deliveryID, record, err := l.claimed(claimID)
	if err != nil {
		return err
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		next := nextAttemptAt.UTC()
		record.Status = DeliveryStatusRetryReady
		record.NextAttemptAt = &next
	}
	record.UpdatedAt = l.now().UTC()
	l.release(deliveryID, record)
	return nil
}

func (l *MemoryDeliveryLedger) claimed(claimID string) (string, DeliveryRecord, error) {
	deliveryID, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return "", DeliveryRecord{}, fmt.Errorf("webhooks: claim %q not found", claimID)
	}
	return deliveryID, l.records[deliveryID], nil
}

func (l *MemoryDeliveryLedger) release(deliveryID string, record DeliveryRecord) {
	delete(l.claims, record.ClaimID)
	delete(l.leases, deliveryID)
	record.ClaimID = ""
	l.records[deliveryID] = record
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
