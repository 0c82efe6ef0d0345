package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultClaimLease = 30 * time.Second

// WebhookDeliveryStore is a DeliveryLedger backed by the
// acumatica_webhook_deliveries table. Claims are leased so a crashed receiver
// does not hold a notification forever.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
	now  func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, storeValidation("db", "bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, storeFailure(err, "invalid webhook delivery repository wiring", nil)
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the store clock, mainly for lease tests.
func (s *WebhookDeliveryStore) WithClock(now func() time.Time) *WebhookDeliveryStore {
	if s != nil && now != nil {
		s.now = now
	}
	return s
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, storeNotConfigured("webhook delivery store")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, storeValidation("delivery_id", "delivery id is required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := s.now().UTC()
	leaseUntil := now.Add(lease)

	existing, err := s.findByDelivery(ctx, s.db, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if existing == nil {
		record := &webhookDeliveryRecord{
			ID:         uuid.NewString(),
			DeliveryID: deliveryID,
			ClaimID:    uuid.NewString(),
			Status:     webhooks.DeliveryStatusProcessing,
			Attempts:   1,
			LeaseUntil: &leaseUntil,
			Payload:    append([]byte(nil), payload...),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := s.repo.Create(ctx, record); err != nil {
			if !isUniqueViolation(err) {
				return webhooks.DeliveryRecord{}, false, storeFailure(err, "insert webhook delivery", map[string]any{
					"delivery_id": deliveryID,
				})
			}
			// Lost the insert race; the winner holds the claim.
			current, getErr := s.Get(ctx, deliveryID)
			return current, false, getErr
		}
		return webhookDeliveryToDomain(record), true, nil
	}

	if !claimable(existing, now) {
		return webhookDeliveryToDomain(existing), false, nil
	}

	previousClaim := existing.ClaimID
	previousStatus := existing.Status
	existing.ClaimID = uuid.NewString()
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.NextAttemptAt = nil
	existing.LeaseUntil = &leaseUntil
	existing.UpdatedAt = now

	res, err := s.db.NewUpdate().
		Model(existing).
		Column("claim_id", "status", "attempts", "next_attempt_at", "lease_until", "updated_at").
		Where("id = ?", existing.ID).
		Where("claim_id = ?", previousClaim).
		Where("status = ?", previousStatus).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, storeFailure(err, "claim webhook delivery", map[string]any{
			"delivery_id": deliveryID,
		})
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		current, getErr := s.Get(ctx, deliveryID)
		return current, false, getErr
	}
	return webhookDeliveryToDomain(existing), true, nil
}

func (s *WebhookDeliveryStore) Get(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, storeNotConfigured("webhook delivery store")
	}
	record, err := s.findByDelivery(ctx, s.db, strings.TrimSpace(deliveryID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	if record == nil {
		return webhooks.DeliveryRecord{}, core.NewNotFoundError("sqlstore: webhook delivery not found", map[string]any{
			"delivery_id": deliveryID,
		})
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return storeNotConfigured("webhook delivery store")
	}
	res, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("claim_id = ?", "").
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("lease_until = NULL").
		Set("updated_at = ?", s.now().UTC()).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	if err != nil {
		return storeFailure(err, "complete webhook delivery", map[string]any{"claim_id": claimID})
	}
	return requireClaimed(res, claimID)
}

func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return storeNotConfigured("webhook delivery store")
	}
	claimID = strings.TrimSpace(claimID)
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", claimID).
		Where("?TableAlias.status = ?", webhooks.DeliveryStatusProcessing).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return claimNotFound(claimID)
		}
		return storeFailure(err, "read webhook claim", map[string]any{"claim_id": claimID})
	}

	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	query := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("claim_id = ?", "").
		Set("last_error = ?", lastError).
		Set("lease_until = NULL").
		Set("updated_at = ?", s.now().UTC())
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		query = query.
			Set("status = ?", webhooks.DeliveryStatusDead).
			Set("next_attempt_at = NULL")
	} else {
		query = query.
			Set("status = ?", webhooks.DeliveryStatusRetryReady).
			Set("next_attempt_at = ?", nextAttemptAt.UTC())
	}
	res, err := query.
		Where("id = ?", record.ID).
		Where("claim_id = ?", claimID).
		Exec(ctx)
	if err != nil {
		return storeFailure(err, "fail webhook delivery", map[string]any{"claim_id": claimID})
	}
	return requireClaimed(res, claimID)
}

func (s *WebhookDeliveryStore) findByDelivery(
	ctx context.Context,
	db bun.IDB,
	deliveryID string,
) (*webhookDeliveryRecord, error) {
	record := &webhookDeliveryRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeFailure(err, "read webhook delivery", map[string]any{"delivery_id": deliveryID})
	}
	return record, nil
}

func claimable(record *webhookDeliveryRecord, now time.Time) bool {
	switch record.Status {
	case webhooks.DeliveryStatusPending:
		return true
	case webhooks.DeliveryStatusRetryReady:
		return record.NextAttemptAt == nil || !record.NextAttemptAt.After(now)
	case webhooks.DeliveryStatusProcessing:
		return record.LeaseUntil == nil || !record.LeaseUntil.After(now)
	default:
		return false
	}
}

func requireClaimed(res sql.Result, claimID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storeFailure(err, "read affected rows", nil)
	}
	if affected == 0 {
		return claimNotFound(claimID)
	}
	return nil
}

func claimNotFound(claimID string) error {
	return core.NewNotFoundError("sqlstore: webhook claim not found", map[string]any{"claim_id": claimID})
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := record.NextAttemptAt.UTC()
		result.NextAttemptAt = &value
	}
	return result
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
