package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-acumatica/core"
)

// MemoryTokenCache keeps tokens in process. Entries are replaced on refresh
// and removed only through Delete; expiry is judged by the reader.
type MemoryTokenCache struct {
	mu    sync.RWMutex
	items map[string]core.CachedToken
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{items: map[string]core.CachedToken{}}
}

func (c *MemoryTokenCache) Get(_ context.Context, key string) (core.CachedToken, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.items[key]
	return token, ok, nil
}

func (c *MemoryTokenCache) Set(_ context.Context, key string, token core.CachedToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = token
	return nil
}

func (c *MemoryTokenCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *MemoryTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func normalizeValues(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

var _ core.TokenCache = (*MemoryTokenCache)(nil)
