package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/oauth2"
)

var DefaultScopes = []string{"api", "offline_access"}

type TokenManagerConfig struct {
	Cache       core.TokenCache
	HTTPClient  *http.Client
	Scopes      []string
	RenewBefore time.Duration
	DefaultTTL  time.Duration
	Now         func() time.Time
	Logger      core.Logger
}

// TokenManager issues OAuth2 password grant tokens and caches them per
// instance url and username.
type TokenManager struct {
	cache       core.TokenCache
	httpClient  *http.Client
	scopes      []string
	renewBefore time.Duration
	defaultTTL  time.Duration
	now         func() time.Time
	logger      core.Logger
}

func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryTokenCache()
	}
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = core.DefaultTokenRenewBefore
	}
	defaultTTL := cfg.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = core.DefaultTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	scopes := normalizeValues(cfg.Scopes)
	if len(scopes) == 0 {
		scopes = append([]string(nil), DefaultScopes...)
	}
	return &TokenManager{
		cache:       cache,
		httpClient:  cfg.HTTPClient,
		scopes:      scopes,
		renewBefore: renewBefore,
		defaultTTL:  defaultTTL,
		now:         now,
		logger:      glog.Ensure(cfg.Logger),
	}
}

// Token returns a cached token when it expires more than RenewBefore from
// now, and otherwise runs a password grant exchange.
func (m *TokenManager) Token(ctx context.Context, creds core.Credentials) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := creds.Validate(); err != nil {
		return "", err
	}

	key := creds.CacheKey()
	now := m.now()
	cached, found, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.Warn("token cache read failed", "cache_key", key, "error", err.Error())
	} else if found && cached.ExpiresAt.After(now.Add(m.renewBefore)) {
		return cached.Token, nil
	}

	issued, err := m.exchange(ctx, creds, now)
	if err != nil {
		return "", err
	}
	if err := m.cache.Set(ctx, key, issued); err != nil {
		m.logger.Warn("token cache write failed", "cache_key", key, "error", err.Error())
	}
	return issued.Token, nil
}

// Invalidate drops the cached token for the identity.
func (m *TokenManager) Invalidate(ctx context.Context, instanceURL string, username string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return m.cache.Delete(ctx, core.TokenCacheKey(instanceURL, username))
}

func (m *TokenManager) exchange(ctx context.Context, creds core.Credentials, now time.Time) (core.CachedToken, error) {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  creds.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: append([]string(nil), m.scopes...),
	}
	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}

	token, err := conf.PasswordCredentialsToken(ctx, creds.LoginName(), creds.Password)
	if err != nil {
		return core.CachedToken{}, core.NewAuthenticationError(upstreamError(err), map[string]any{
			"token_url": creds.TokenURL(),
			"username":  creds.Username,
		})
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return core.CachedToken{}, core.NewAuthenticationError(
			errors.New("token response did not include an access token"),
			map[string]any{"token_url": creds.TokenURL()},
		)
	}

	ttl := m.defaultTTL
	if token.ExpiresIn > 0 {
		ttl = time.Duration(token.ExpiresIn) * time.Second
	}
	return core.CachedToken{
		Token:     token.AccessToken,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// upstreamError prefers the OAuth2 error description over the generic
// retrieve error text.
func upstreamError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return err
	}
	switch {
	case strings.TrimSpace(retrieveErr.ErrorDescription) != "":
		return errors.New(strings.TrimSpace(retrieveErr.ErrorDescription))
	case strings.TrimSpace(retrieveErr.ErrorCode) != "":
		return errors.New(strings.TrimSpace(retrieveErr.ErrorCode))
	}
	return err
}

var _ core.TokenSource = (*TokenManager)(nil)
