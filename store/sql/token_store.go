package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/security"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenStore persists access tokens by credential cache key so that several
// processes can share one Acumatica session. Tokens are sealed with the
// configured secret provider before they are written.
type TokenStore struct {
	db     *bun.DB
	repo   repository.Repository[*tokenRecord]
	secret security.SecretProvider
	now    func() time.Time
}

func NewTokenStore(db *bun.DB, secret security.SecretProvider) (*TokenStore, error) {
	if db == nil {
		return nil, storeValidation("db", "bun db is required")
	}
	repo := repository.NewRepository[*tokenRecord](db, tokenHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, storeFailure(err, "invalid token repository wiring", nil)
		}
	}
	return &TokenStore{
		db:     db,
		repo:   repo,
		secret: secret,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *TokenStore) Get(ctx context.Context, key string) (core.CachedToken, bool, error) {
	if s == nil || s.db == nil {
		return core.CachedToken{}, false, storeNotConfigured("token store")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.CachedToken{}, false, storeValidation("cache_key", "cache key is required")
	}
	record, err := s.find(ctx, s.db, key)
	if err != nil {
		return core.CachedToken{}, false, err
	}
	if record == nil {
		return core.CachedToken{}, false, nil
	}
	token, err := s.open(ctx, record)
	if err != nil {
		return core.CachedToken{}, false, err
	}
	return core.CachedToken{Token: token, ExpiresAt: record.ExpiresAt.UTC()}, true, nil
}

func (s *TokenStore) Set(ctx context.Context, key string, token core.CachedToken) error {
	if s == nil || s.db == nil {
		return storeNotConfigured("token store")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return storeValidation("cache_key", "cache key is required")
	}
	if strings.TrimSpace(token.Token) == "" {
		return storeValidation("token", "token is required")
	}
	sealed, err := s.seal(ctx, token.Token)
	if err != nil {
		return err
	}
	now := s.now()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.find(ctx, tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			record = &tokenRecord{ID: uuid.NewString(), CacheKey: key, CreatedAt: now}
			sealed.apply(record, token.ExpiresAt, now)
			if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
				return storeFailure(err, "insert token", map[string]any{"cache_key": key})
			}
			return nil
		}
		sealed.apply(record, token.ExpiresAt, now)
		if _, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
			return storeFailure(err, "update token", map[string]any{"cache_key": key})
		}
		return nil
	})
}

func (s *TokenStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return storeNotConfigured("token store")
	}
	_, err := s.db.NewDelete().
		Model((*tokenRecord)(nil)).
		Where("cache_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	if err != nil {
		return storeFailure(err, "delete token", map[string]any{"cache_key": key})
	}
	return nil
}

// PurgeExpired removes tokens that expired before cutoff and reports how many
// rows were deleted.
func (s *TokenStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, storeNotConfigured("token store")
	}
	res, err := s.db.NewDelete().
		Model((*tokenRecord)(nil)).
		Where("expires_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, storeFailure(err, "purge expired tokens", nil)
	}
	return res.RowsAffected()
}

func (s *TokenStore) find(ctx context.Context, db bun.IDB, key string) (*tokenRecord, error) {
	record := &tokenRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.cache_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeFailure(err, "read token", map[string]any{"cache_key": key})
	}
	return record, nil
}

type sealedToken struct {
	value   []byte
	sealed  bool
	keyID   string
	version int
}

func (t sealedToken) apply(record *tokenRecord, expiresAt time.Time, now time.Time) {
	record.Token = t.value
	record.Sealed = t.sealed
	record.KeyID = t.keyID
	record.KeyVersion = t.version
	record.ExpiresAt = expiresAt.UTC()
	record.UpdatedAt = now
}

func (s *TokenStore) seal(ctx context.Context, token string) (sealedToken, error) {
	if s.secret == nil {
		return sealedToken{value: []byte(token)}, nil
	}
	ciphertext, err := s.secret.Encrypt(ctx, []byte(token))
	if err != nil {
		return sealedToken{}, storeFailure(err, "seal token", nil)
	}
	meta, err := security.ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return sealedToken{}, storeFailure(err, "seal token", nil)
	}
	return sealedToken{value: ciphertext, sealed: true, keyID: meta.KeyID, version: meta.Version}, nil
}

func (s *TokenStore) open(ctx context.Context, record *tokenRecord) (string, error) {
	if !record.Sealed {
		return string(record.Token), nil
	}
	if s.secret == nil {
		return "", storeNotConfigured("token secret provider")
	}
	plaintext, err := s.secret.Decrypt(ctx, record.Token)
	if err != nil {
		return "", storeFailure(err, "open token", map[string]any{
			"cache_key": record.CacheKey,
			"key_id":    record.KeyID,
		})
	}
	return string(plaintext), nil
}
