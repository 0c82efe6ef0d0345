package sqlstore

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/goliatone/go-acumatica/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const tokenCacheKeyPrefix = "go-acumatica::token::v1"

var errTokenMiss = errors.New("sqlstore: token not cached")

// CachedTokenStore fronts a persistent token cache with a go-repository-cache
// service. Misses are not cached; writes and deletes evict the key.
type CachedTokenStore struct {
	base  core.TokenCache
	cache repositorycache.CacheService
}

func NewCachedTokenStore(base core.TokenCache, cacheService repositorycache.CacheService) (*CachedTokenStore, error) {
	if base == nil {
		return nil, storeValidation("base", "base token cache is required")
	}
	if cacheService == nil {
		return nil, storeValidation("cache", "token cache service is required")
	}
	return &CachedTokenStore{base: base, cache: cacheService}, nil
}

// TokenCacheKey returns go-acumatica::token::v1::<escaped cache key>.
func TokenCacheKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", storeValidation("cache_key", "cache key is required")
	}
	return tokenCacheKeyPrefix + "::" + url.PathEscape(key), nil
}

func (s *CachedTokenStore) Get(ctx context.Context, key string) (core.CachedToken, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CachedToken{}, false, storeNotConfigured("cached token store")
	}
	cacheKey, err := TokenCacheKey(key)
	if err != nil {
		return core.CachedToken{}, false, err
	}
	token, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.CachedToken, error) {
		fetched, found, fetchErr := s.base.Get(ctx, strings.TrimSpace(key))
		if fetchErr != nil {
			return core.CachedToken{}, fetchErr
		}
		if !found {
			return core.CachedToken{}, errTokenMiss
		}
		return fetched, nil
	})
	if err != nil {
		if errors.Is(err, errTokenMiss) {
			return core.CachedToken{}, false, nil
		}
		return core.CachedToken{}, false, err
	}
	return token, true, nil
}

func (s *CachedTokenStore) Set(ctx context.Context, key string, token core.CachedToken) error {
	if s == nil || s.base == nil || s.cache == nil {
		return storeNotConfigured("cached token store")
	}
	if err := s.base.Set(ctx, key, token); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedTokenStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return storeNotConfigured("cached token store")
	}
	if err := s.base.Delete(ctx, key); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedTokenStore) evict(ctx context.Context, key string) error {
	cacheKey, err := TokenCacheKey(key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
