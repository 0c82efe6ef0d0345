package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

type BurstMode string

const (
	BurstModeNone BurstMode = "none"
	// BurstModeCoalesce suppresses repeats for Window after the first
	// occurrence.
	BurstModeCoalesce BurstMode = "coalesce"
	// BurstModeDebounce suppresses repeats until Window passes without one.
	BurstModeDebounce BurstMode = "debounce"
)

type BurstDecision struct {
	Allow    bool
	Metadata map[string]any
}

// BurstController suppresses notifications that repeat the same content
// under different notification ids, as happens when several push
// notification definitions watch the same screen.
type BurstController interface {
	Allow(ctx context.Context, n Notification) BurstDecision
}

type BurstKeyExtractor func(n Notification) (string, bool)

type BurstOptions struct {
	Mode       BurstMode
	Window     time.Duration
	MaxEntries int
	ExtractKey BurstKeyExtractor
	Now        func() time.Time
}

type DefaultBurstController struct {
	mode       BurstMode
	window     time.Duration
	maxEntries int
	extractKey BurstKeyExtractor
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewBurstController(opts BurstOptions) *DefaultBurstController {
	window := opts.Window
	if window <= 0 {
		window = 2 * time.Second
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	extractKey := opts.ExtractKey
	if extractKey == nil {
		extractKey = ContentBurstKey
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DefaultBurstController{
		mode:       normalizeBurstMode(opts.Mode),
		window:     window,
		maxEntries: maxEntries,
		extractKey: extractKey,
		now:        now,
		entries:    map[string]time.Time{},
	}
}

func (c *DefaultBurstController) Allow(_ context.Context, n Notification) BurstDecision {
	if c == nil || c.mode == BurstModeNone {
		return BurstDecision{Allow: true}
	}
	key, ok := c.extractKey(n)
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return BurstDecision{Allow: true}
	}

	now := c.now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.cleanup(now)

	lastSeen, exists := c.entries[key]
	if !exists || now.Sub(lastSeen) >= c.window {
		c.entries[key] = now
		return BurstDecision{Allow: true}
	}
	if c.mode == BurstModeDebounce {
		c.entries[key] = now
	}
	return BurstDecision{
		Allow: false,
		Metadata: map[string]any{
			"burst_mode":      string(c.mode),
			"burst_key":       key,
			"burst_window_ms": c.window.Milliseconds(),
			"suppressed":      true,
		},
	}
}

func (c *DefaultBurstController) cleanup(now time.Time) {
	if len(c.entries) <= c.maxEntries {
		for key, seenAt := range c.entries {
			if now.Sub(seenAt) > c.window*4 {
				delete(c.entries, key)
			}
		}
		return
	}
	for key, seenAt := range c.entries {
		if now.Sub(seenAt) > c.window {
			delete(c.entries, key)
		}
		if len(c.entries) <= c.maxEntries {
			break
		}
	}
}

// ContentBurstKey fingerprints the query, company and row summaries.
// Notifications without rows are never suppressed.
func ContentBurstKey(n Notification) (string, bool) {
	if len(n.Inserted) == 0 && len(n.Deleted) == 0 {
		return "", false
	}
	encoded, err := json.Marshal(struct {
		Inserted []any `json:"i"`
		Deleted  []any `json:"d"`
	}{n.Inserted, n.Deleted})
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(encoded)
	return strings.ToLower(n.Query) + ":" + n.CompanyID + ":" + hex.EncodeToString(sum[:8]), true
}

func normalizeBurstMode(mode BurstMode) BurstMode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(BurstModeCoalesce):
		return BurstModeCoalesce
	case string(BurstModeDebounce):
		return BurstModeDebounce
	default:
		return BurstModeNone
	}
}

var _ BurstController = (*DefaultBurstController)(nil)
