package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type tokenRecord struct {
	bun.BaseModel `bun:"table:acumatica_tokens,alias:at"`

	ID         string    `bun:"id,pk"`
	CacheKey   string    `bun:"cache_key,notnull"`
	Token      []byte    `bun:"token,notnull"`
	Sealed     bool      `bun:"sealed,notnull"`
	KeyID      string    `bun:"key_id,notnull"`
	KeyVersion int       `bun:"key_version,notnull"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:acumatica_webhook_deliveries,alias:awd"`

	ID            string     `bun:"id,pk"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	ClaimID       string     `bun:"claim_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	LeaseUntil    *time.Time `bun:"lease_until,nullzero"`
	LastError     string     `bun:"last_error,notnull"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:acumatica_rate_limit_state,alias:arl"`

	ID          string         `bun:"id,pk"`
	InstanceURL string         `bun:"instance_url,notnull"`
	Username    string         `bun:"username,notnull"`
	BucketKey   string         `bun:"bucket_key,notnull"`
	Limit       int            `bun:"limit,notnull"`
	Remaining   int            `bun:"remaining,notnull"`
	ResetAt     *time.Time     `bun:"reset_at,nullzero"`
	RetryAfter  *int           `bun:"retry_after,nullzero"`
	Metadata    map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
