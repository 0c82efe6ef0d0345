package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedConfigProvider struct {
	cfg Config
	err error
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, p.err
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewClient_DefaultConfig(t *testing.T) {
	client := newTestClient(t, &fakeTransport{}, nil)
	cfg := client.Config()
	if cfg.ServiceName != "acumatica" {
		t.Fatalf("expected default service_name, got %q", cfg.ServiceName)
	}
	if cfg.PageSize != DefaultPageSize || cfg.MaxPageSize != MaxPageSize {
		t.Fatalf("unexpected page sizes %d/%d", cfg.PageSize, cfg.MaxPageSize)
	}
	if cfg.TokenRenewBefore() != 5*time.Minute {
		t.Fatalf("expected 5m renew window, got %s", cfg.TokenRenewBefore())
	}
	if cfg.DefaultTokenTTL() != time.Hour {
		t.Fatalf("expected 1h default ttl, got %s", cfg.DefaultTokenTTL())
	}
	poll := cfg.PollOptions()
	if poll.MaxAttempts != 60 || poll.Interval != time.Second {
		t.Fatalf("unexpected poll defaults %#v", poll)
	}
}

func TestNewClient_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name":            "from-config",
		"page_size":               50,
		"request_timeout_seconds": 10,
	}})
	client := newTestClient(t, &fakeTransport{}, nil, WithConfigProvider(provider))
	client2, err := NewClient(Config{PageSize: 200},
		WithCredentials(testCredentials()),
		WithTokenSource(&stubTokenSource{}),
		WithTransport(&fakeTransport{}),
		WithConfigProvider(provider),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if got := client.Config(); got.ServiceName != "from-config" || got.PageSize != 50 || got.RequestTimeout() != 10*time.Second {
		t.Fatalf("expected config layer values, got %#v", got)
	}
	if got := client2.Config(); got.PageSize != 200 || got.ServiceName != "from-config" {
		t.Fatalf("expected runtime layer to win for page_size, got %#v", got)
	}
	if got := client2.Config().MaxPageSize; got != MaxPageSize {
		t.Fatalf("expected defaults to fill max_page_size, got %d", got)
	}
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"page_size":     900,
		"max_page_size": 500,
	}})
	_, err := NewClient(Config{},
		WithTokenSource(&stubTokenSource{}),
		WithTransport(&fakeTransport{}),
		WithConfigProvider(provider),
	)
	if err == nil {
		t.Fatalf("expected invalid config error")
	}
}

func TestNewClient_ConfigProviderFailure(t *testing.T) {
	_, err := NewClient(Config{},
		WithTokenSource(&stubTokenSource{}),
		WithTransport(&fakeTransport{}),
		WithConfigProvider(&fixedConfigProvider{err: errors.New("config unavailable")}),
	)
	if err == nil {
		t.Fatalf("expected provider error")
	}
	if StatusCode(err) == 0 {
		t.Fatalf("expected mapped error envelope, got %v", err)
	}
}

func TestNewClient_OptionsResolverOverride(t *testing.T) {
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	client := newTestClient(t, &fakeTransport{}, nil,
		WithConfigProvider(&fixedConfigProvider{cfg: DefaultConfig()}),
		WithOptionsResolver(&fixedOptionsResolver{cfg: resolved}),
	)
	if client.Config().ServiceName != "resolved" {
		t.Fatalf("expected resolver output, got %q", client.Config().ServiceName)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "service name", mutate: func(c *Config) { c.ServiceName = " " }},
		{name: "page size", mutate: func(c *Config) { c.PageSize = 0 }},
		{name: "page size above max", mutate: func(c *Config) { c.PageSize = c.MaxPageSize + 1 }},
		{name: "negative timeout", mutate: func(c *Config) { c.RequestTimeoutSeconds = -1 }},
		{name: "poll attempts", mutate: func(c *Config) { c.Poll.MaxAttempts = 0 }},
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestCredentials_Derivations(t *testing.T) {
	creds := testCredentials()
	creds.InstanceURL = "https://erp.example.com//"
	if creds.CacheKey() != "https://erp.example.com//:admin" {
		t.Fatalf("expected raw cache key, got %q", creds.CacheKey())
	}
	if creds.EntityBaseURL() != "https://erp.example.com/entity/Default/23.200.001" {
		t.Fatalf("unexpected entity base url %q", creds.EntityBaseURL())
	}
	if creds.TokenURL() != "https://erp.example.com/identity/connect/token" {
		t.Fatalf("unexpected token url %q", creds.TokenURL())
	}
	if creds.LoginName() != "admin" {
		t.Fatalf("expected bare login without company, got %q", creds.LoginName())
	}
	creds.CompanyName = "Acme"
	if creds.LoginName() != "admin@Acme" {
		t.Fatalf("expected company-qualified login, got %q", creds.LoginName())
	}
}

func TestCredentials_Validate(t *testing.T) {
	if err := testCredentials().Validate(); err != nil {
		t.Fatalf("expected valid credentials: %v", err)
	}
	err := Credentials{}.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if StatusCode(err) != 400 {
		t.Fatalf("expected 400, got %d", StatusCode(err))
	}
}

func TestResolveLogger(t *testing.T) {
	if ResolveLogger() == nil {
		t.Fatalf("expected a no-op logger without options")
	}

	direct := newCaptureLogger()
	if got := ResolveLogger(WithLogger(direct)); got != Logger(direct) {
		t.Fatalf("expected direct logger, got %#v", got)
	}

	named := newCaptureLogger()
	got := ResolveLogger(WithLogger(direct), WithLoggerProvider(stubLoggerProvider{logger: named}))
	if got != Logger(named) {
		t.Fatalf("expected provider logger to take precedence, got %#v", got)
	}
}
