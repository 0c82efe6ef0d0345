package sqlstore

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/ratelimit"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const rateLimitStateCacheKeyPrefix = "go-acumatica::ratelimit_state::v1"

type CachedRateLimitStateStore struct {
	base  ratelimit.StateStore
	cache repositorycache.CacheService
}

func NewCachedRateLimitStateStore(
	base ratelimit.StateStore,
	cacheService repositorycache.CacheService,
) (*CachedRateLimitStateStore, error) {
	if base == nil {
		return nil, storeValidation("base", "base rate-limit state store is required")
	}
	if cacheService == nil {
		return nil, storeValidation("cache", "rate-limit cache service is required")
	}
	return &CachedRateLimitStateStore{base: base, cache: cacheService}, nil
}

// RateLimitStateCacheKey returns the deterministic cache key for rate-limit
// state reads: go-acumatica::ratelimit_state::v1::<instance>::<username>::<bucket>
// with each segment URL-path escaped after key normalization.
func RateLimitStateCacheKey(key core.RateLimitKey) (string, error) {
	normalized := ratelimit.NormalizeKey(key)
	if err := validateRateLimitKey(normalized); err != nil {
		return "", err
	}
	segments := []string{
		normalized.InstanceURL,
		normalized.Username,
		normalized.BucketKey,
	}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{rateLimitStateCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedRateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return ratelimit.State{}, storeNotConfigured("cached rate-limit state store")
	}
	normalized := ratelimit.NormalizeKey(key)
	cacheKey, err := RateLimitStateCacheKey(normalized)
	if err != nil {
		return ratelimit.State{}, err
	}

	state, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (ratelimit.State, error) {
		fetched, fetchErr := s.base.Get(ctx, normalized)
		if fetchErr != nil {
			return ratelimit.State{}, fetchErr
		}
		fetched.Key = ratelimit.NormalizeKey(fetched.Key)
		return cloneRateLimitState(fetched), nil
	})
	if err != nil {
		return ratelimit.State{}, err
	}
	return cloneRateLimitState(state), nil
}

func (s *CachedRateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.base == nil || s.cache == nil {
		return storeNotConfigured("cached rate-limit state store")
	}
	state.Key = ratelimit.NormalizeKey(state.Key)
	if err := validateRateLimitKey(state.Key); err != nil {
		return err
	}
	state.Metadata = copyAnyMap(state.Metadata)

	if err := s.base.Upsert(ctx, state); err != nil {
		return err
	}

	cacheKey, err := RateLimitStateCacheKey(state.Key)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return err
	}
	return nil
}

func cloneRateLimitState(state ratelimit.State) ratelimit.State {
	cloned := state
	cloned.Key = ratelimit.NormalizeKey(state.Key)
	cloned.Metadata = copyAnyMap(state.Metadata)
	cloned.ResetAt = cloneTimePointer(state.ResetAt)
	cloned.ThrottledUntil = cloneTimePointer(state.ThrottledUntil)
	cloned.RetryAfter = cloneDurationPointer(state.RetryAfter)
	return cloned
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func cloneDurationPointer(input *time.Duration) *time.Duration {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}
