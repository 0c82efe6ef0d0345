package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	goerrors "github.com/goliatone/go-errors"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is the last known throttle window for one instance/user/bucket.
// Acumatica enforces request-per-minute and concurrent-request limits per
// license and answers 429 when either is exceeded.
type State struct {
	Key            core.RateLimitKey
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
	Metadata       map[string]any
}

type StateStore interface {
	Get(ctx context.Context, key core.RateLimitKey) (State, error)
	Upsert(ctx context.Context, state State) error
}

// ThrottledError is returned by BeforeCall while a throttle window is open.
// The client converts it into the ACUMATICA_RATE_LIMITED envelope.
type ThrottledError struct {
	InstanceURL string
	Username    string
	BucketKey   string
	RetryAfter  time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: %s (%s) bucket %q throttled for %s",
		e.InstanceURL,
		e.Username,
		e.BucketKey,
		e.RetryAfter,
	)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	return core.NewRateLimitError(e.RetryAfter, map[string]any{
		"instance_url": e.InstanceURL,
		"username":     e.Username,
		"bucket_key":   e.BucketKey,
		"local":        true,
	})
}

// AdaptivePolicy remembers 429 responses and blocks further calls for the
// same key until the server's Retry-After (or an exponential backoff when the
// server gave none) has elapsed.
type AdaptivePolicy struct {
	Store            StateStore
	Now              func() time.Time
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	DefaultRetryHint time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:            store,
		Now:              func() time.Time { return time.Now().UTC() },
		InitialBackoff:   time.Second,
		MaxBackoff:       time.Minute,
		DefaultRetryHint: 5 * time.Second,
	}
}

func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key core.RateLimitKey) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = NormalizeKey(key)
	state, err := p.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return throttled(key, until.Sub(now))
	}
	if state.Remaining == 0 && state.ResetAt != nil && now.Before(*state.ResetAt) {
		return throttled(key, state.ResetAt.Sub(now))
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, key core.RateLimitKey, res core.ResponseMeta) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = NormalizeKey(key)
	now := p.now()
	state, err := p.Store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = State{Key: key}
	case err != nil:
		return err
	}

	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	state.Metadata = cloneMap(state.Metadata)
	for k, v := range res.Metadata {
		state.Metadata[k] = v
	}

	limit, hasLimit := parseHeaderInt(res.Headers, "x-ratelimit-limit")
	if hasLimit {
		state.Limit = limit
	}
	remaining, hasRemaining := parseHeaderInt(res.Headers, "x-ratelimit-remaining")
	if hasRemaining {
		state.Remaining = remaining
	}
	resetAt, hasResetAt := parseHeaderResetAt(res.Headers)
	if hasResetAt {
		state.ResetAt = &resetAt
	}

	retryAfter, hasRetryAfter := parseRetryAfter(res, now)
	if hasRetryAfter {
		state.RetryAfter = &retryAfter
	} else {
		state.RetryAfter = nil
	}

	throttledResponse := res.StatusCode == 429 ||
		(res.StatusCode < 500 && hasRemaining && remaining == 0)
	if throttledResponse {
		state.Attempts++
		delay := retryAfter
		if !hasRetryAfter {
			if hasResetAt && resetAt.After(now) {
				delay = resetAt.Sub(now)
			} else {
				delay = p.nextBackoff(state.Attempts)
			}
		}
		until := now.Add(delay)
		state.ThrottledUntil = &until
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts = 0
	state.ThrottledUntil = nil
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = p.defaultRetryHint()
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func (p *AdaptivePolicy) defaultRetryHint() time.Duration {
	if p != nil && p.DefaultRetryHint > 0 {
		return p.DefaultRetryHint
	}
	return 5 * time.Second
}

func throttled(key core.RateLimitKey, retryAfter time.Duration) ThrottledError {
	return ThrottledError{
		InstanceURL: key.InstanceURL,
		Username:    key.Username,
		BucketKey:   key.BucketKey,
		RetryAfter:  retryAfter,
	}
}

func parseRetryAfter(res core.ResponseMeta, now time.Time) (time.Duration, bool) {
	if res.RetryAfter != nil && *res.RetryAfter > 0 {
		return *res.RetryAfter, true
	}
	raw := headerValue(res.Headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func parseHeaderInt(headers map[string]string, key string) (int, bool) {
	value := headerValue(headers, key)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseHeaderResetAt(headers map[string]string) (time.Time, bool) {
	value := headerValue(headers, "x-ratelimit-reset")
	if value == "" {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

func httpDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if parsed, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("ratelimit: invalid http date %q", value)
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// NormalizeKey folds the instance URL to lower case without trailing slashes
// so "https://erp.example.com/" and "https://ERP.example.com" share a window.
func NormalizeKey(key core.RateLimitKey) core.RateLimitKey {
	bucket := strings.TrimSpace(strings.ToLower(key.BucketKey))
	if bucket == "" {
		bucket = "entity"
	}
	return core.RateLimitKey{
		InstanceURL: strings.TrimRight(strings.TrimSpace(strings.ToLower(key.InstanceURL)), "/"),
		Username:    strings.TrimSpace(key.Username),
		BucketKey:   bucket,
	}
}

func cloneMap(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

var _ core.RateLimitPolicy = (*AdaptivePolicy)(nil)
