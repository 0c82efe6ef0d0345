package redisstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/security"
	"github.com/redis/go-redis/v9"
)

type stubClient struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newStubClient() *stubClient {
	return &stubClient{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *stubClient) Get(_ context.Context, key string) *redis.StringCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return redis.NewStringResult("", s.getErr)
	}
	value, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(value), nil)
}

func (s *stubClient) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value.([]byte)
	s.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (s *stubClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			removed++
		}
		delete(s.values, key)
	}
	return redis.NewIntResult(removed, nil)
}

func TestTokenCache_RoundTripWithTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	client := newStubClient()
	cache, err := NewTokenCache(client, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new token cache: %v", err)
	}

	if _, found, err := cache.Get(ctx, "https://erp.example.com:admin"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	expires := now.Add(5 * time.Minute)
	if err := cache.Set(ctx, "https://erp.example.com:admin", core.CachedToken{Token: "t1", ExpiresAt: expires}); err != nil {
		t.Fatalf("set: %v", err)
	}
	key, _ := cache.Key("https://erp.example.com:admin")
	if !strings.HasPrefix(key, DefaultKeyPrefix) {
		t.Fatalf("unexpected key %q", key)
	}
	if client.ttls[key] != 5*time.Minute {
		t.Fatalf("expected ttl to follow token expiry, got %v", client.ttls[key])
	}

	token, found, err := cache.Get(ctx, "https://erp.example.com:admin")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if token.Token != "t1" || !token.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected token %#v", token)
	}

	if err := cache.Delete(ctx, "https://erp.example.com:admin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := cache.Get(ctx, "https://erp.example.com:admin"); found {
		t.Fatalf("expected miss after delete")
	}
}

func TestTokenCache_SealsValues(t *testing.T) {
	ctx := context.Background()
	secret, err := security.NewAppKeySecretProviderFromString("redis-key")
	if err != nil {
		t.Fatalf("secret provider: %v", err)
	}
	client := newStubClient()
	cache, _ := NewTokenCache(client, WithSecretProvider(secret), WithKeyPrefix("erp:"))

	if err := cache.Set(ctx, "k", core.CachedToken{Token: "plain-token", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if strings.Contains(string(client.values["erp:k"]), "plain-token") {
		t.Fatalf("expected sealed value, got %s", client.values["erp:k"])
	}
	token, found, err := cache.Get(ctx, "k")
	if err != nil || !found || token.Token != "plain-token" {
		t.Fatalf("expected opened token, got %#v found=%v err=%v", token, found, err)
	}

	unsealed, _ := NewTokenCache(client, WithKeyPrefix("erp:"))
	if _, _, err := unsealed.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error opening sealed token without a secret")
	}
}

func TestTokenCache_Errors(t *testing.T) {
	if _, err := NewTokenCache(nil); !core.IsBadInputError(err) {
		t.Fatalf("expected bad input for nil client, got %v", err)
	}
	client := newStubClient()
	client.getErr = errors.New("connection refused")
	cache, _ := NewTokenCache(client)
	if _, _, err := cache.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected read error")
	}
	if _, err := cache.Key(" "); !core.IsBadInputError(err) {
		t.Fatalf("expected bad input for empty key, got %v", err)
	}
}

func TestTokenCache_ExpiredTokenGetsMinimumTTL(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	client := newStubClient()
	cache, _ := NewTokenCache(client, WithClock(func() time.Time { return now }))
	_ = cache.Set(context.Background(), "k", core.CachedToken{Token: "t", ExpiresAt: now.Add(-time.Minute)})
	if client.ttls[DefaultKeyPrefix+"k"] != minTokenTTL {
		t.Fatalf("expected minimum ttl, got %v", client.ttls[DefaultKeyPrefix+"k"])
	}
}
