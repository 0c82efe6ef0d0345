package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/security"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "go-acumatica:token:"

	minTokenTTL = time.Second
)

// Client is the subset of redis.Cmdable the token cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Option func(*TokenCache)

func WithKeyPrefix(prefix string) Option {
	return func(c *TokenCache) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithSecretProvider seals token values before they are written.
func WithSecretProvider(secret security.SecretProvider) Option {
	return func(c *TokenCache) {
		c.secret = secret
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *TokenCache) {
		if now != nil {
			c.now = now
		}
	}
}

// TokenCache shares access tokens between processes through Redis. Entries
// expire with the token, so a miss is the normal state after expiry.
type TokenCache struct {
	client Client
	prefix string
	secret security.SecretProvider
	now    func() time.Time
}

type tokenEntry struct {
	Token     []byte    `json:"token"`
	Sealed    bool      `json:"sealed,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewTokenCache(client Client, opts ...Option) (*TokenCache, error) {
	if client == nil {
		return nil, core.NewBadInputError("redisstore: redis client is required", nil)
	}
	cache := &TokenCache{
		client: client,
		prefix: DefaultKeyPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache, nil
}

// Key returns the Redis key for a credential cache key.
func (c *TokenCache) Key(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", core.NewBadInputError("redisstore: cache key is required", nil)
	}
	return c.prefix + url.PathEscape(key), nil
}

func (c *TokenCache) Get(ctx context.Context, key string) (core.CachedToken, bool, error) {
	redisKey, err := c.Key(key)
	if err != nil {
		return core.CachedToken{}, false, err
	}
	raw, err := c.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.CachedToken{}, false, nil
		}
		return core.CachedToken{}, false, core.NewInternalError(err, "redisstore: read token", map[string]any{"key": redisKey})
	}

	var entry tokenEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return core.CachedToken{}, false, core.NewInternalError(err, "redisstore: decode token", map[string]any{"key": redisKey})
	}
	value := entry.Token
	if entry.Sealed {
		if c.secret == nil {
			return core.CachedToken{}, false, core.NewBadInputError("redisstore: secret provider is required to open sealed tokens", nil)
		}
		if value, err = c.secret.Decrypt(ctx, entry.Token); err != nil {
			return core.CachedToken{}, false, core.NewInternalError(err, "redisstore: open token", map[string]any{"key": redisKey})
		}
	}
	return core.CachedToken{Token: string(value), ExpiresAt: entry.ExpiresAt}, true, nil
}

func (c *TokenCache) Set(ctx context.Context, key string, token core.CachedToken) error {
	redisKey, err := c.Key(key)
	if err != nil {
		return err
	}
	entry := tokenEntry{Token: []byte(token.Token), ExpiresAt: token.ExpiresAt.UTC()}
	if c.secret != nil {
		if entry.Token, err = c.secret.Encrypt(ctx, entry.Token); err != nil {
			return core.NewInternalError(err, "redisstore: seal token", map[string]any{"key": redisKey})
		}
		entry.Sealed = true
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return core.NewInternalError(err, "redisstore: encode token", map[string]any{"key": redisKey})
	}
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}
	if err := c.client.Set(ctx, redisKey, raw, ttl).Err(); err != nil {
		return core.NewInternalError(err, "redisstore: write token", map[string]any{"key": redisKey})
	}
	return nil
}

func (c *TokenCache) Delete(ctx context.Context, key string) error {
	redisKey, err := c.Key(key)
	if err != nil {
		return err
	}
	if err := c.client.Del(ctx, redisKey).Err(); err != nil {
		return core.NewInternalError(err, "redisstore: delete token", map[string]any{"key": redisKey})
	}
	return nil
}

var (
	_ core.TokenCache = (*TokenCache)(nil)
	_ Client          = (*redis.Client)(nil)
)
