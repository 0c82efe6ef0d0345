package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// CachedToken is an access token together with its absolute expiry.
type CachedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenCache stores tokens keyed by Credentials.CacheKey. Get reports a miss
// with found=false and a nil error.
type TokenCache interface {
	Get(ctx context.Context, key string) (token CachedToken, found bool, err error)
	Set(ctx context.Context, key string, token CachedToken) error
	Delete(ctx context.Context, key string) error
}

// TokenSource issues bearer tokens for a credential identity.
type TokenSource interface {
	Token(ctx context.Context, creds Credentials) (string, error)
	Invalidate(ctx context.Context, instanceURL string, username string) error
}

type CredentialsResolver interface {
	Resolve(ctx context.Context) (Credentials, error)
}

type CredentialsResolverFunc func(ctx context.Context) (Credentials, error)

func (f CredentialsResolverFunc) Resolve(ctx context.Context) (Credentials, error) {
	return f(ctx)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type RateLimitKey struct {
	InstanceURL string
	Username    string
	BucketKey   string
}

type ResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	RetryAfter *time.Duration
	Metadata   map[string]any
}

type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, key RateLimitKey) error
	AfterCall(ctx context.Context, key RateLimitKey, res ResponseMeta) error
}
