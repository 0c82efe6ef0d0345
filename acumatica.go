package acumatica

import (
	"net/http"

	"github.com/goliatone/go-acumatica/auth"
	"github.com/goliatone/go-acumatica/command"
	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/query"
	"github.com/goliatone/go-acumatica/ratelimit"
	"github.com/goliatone/go-acumatica/resources"
	"github.com/goliatone/go-acumatica/transport"
)

type Config = core.Config

type Credentials = core.Credentials

type Client = core.Client

type Option = core.Option

type TokenCache = core.TokenCache

type PollOptions = core.PollOptions

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithCredentialsSource = core.WithCredentialsResolver
	WithRateLimitPolicy   = core.WithRateLimitPolicy
	WithSleeper           = core.WithSleeper
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type SetupOption func(*setup)

type setup struct {
	httpClient  *http.Client
	doer        transport.HTTPDoer
	tokenCache  core.TokenCache
	catalog     *resources.Catalog
	rateLimits  ratelimit.StateStore
	rateLimited bool
	options     []core.Option
}

// WithHTTPClient is used for both the token endpoint and entity calls.
func WithHTTPClient(client *http.Client) SetupOption {
	return func(s *setup) {
		s.httpClient = client
	}
}

// WithHTTPDoer replaces the entity call transport only.
func WithHTTPDoer(doer transport.HTTPDoer) SetupOption {
	return func(s *setup) {
		s.doer = doer
	}
}

// WithTokenCache shares tokens through a persistent cache, e.g. the sql or
// redis stores.
func WithTokenCache(cache core.TokenCache) SetupOption {
	return func(s *setup) {
		s.tokenCache = cache
	}
}

func WithCatalog(catalog *resources.Catalog) SetupOption {
	return func(s *setup) {
		s.catalog = catalog
	}
}

// WithAdaptiveRateLimit enables fast-fail on known throttle windows. A nil
// store keeps state in memory.
func WithAdaptiveRateLimit(store ratelimit.StateStore) SetupOption {
	return func(s *setup) {
		s.rateLimited = true
		s.rateLimits = store
	}
}

func WithClientOptions(opts ...core.Option) SetupOption {
	return func(s *setup) {
		s.options = append(s.options, opts...)
	}
}

// Adapter bundles the client, its token manager and the resource service.
type Adapter struct {
	client    *core.Client
	tokens    *auth.TokenManager
	resources *resources.Service
	commands  Commands
	queries   Queries
}

type Commands struct {
	Upsert          *command.UpsertEntityCommand
	Delete          *command.DeleteEntityCommand
	Invoke          *command.InvokeActionCommand
	InvalidateToken *command.InvalidateTokenCommand
}

type Queries struct {
	Get        *query.GetEntityQuery
	List       *query.ListEntitiesQuery
	RunInquiry *query.RunInquiryQuery
	Classify   *query.ClassifyNotificationQuery
}

// New builds an adapter for one set of credentials with the OAuth2 token
// manager, the REST transport and the built-in resource catalog.
func New(cfg Config, creds Credentials, opts ...SetupOption) (*Adapter, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	s := setup{}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	doer := s.doer
	if doer == nil && s.httpClient != nil {
		doer = s.httpClient
	}
	tokenCache := s.tokenCache
	if tokenCache == nil {
		tokenCache = auth.NewMemoryTokenCache()
	}

	logger := core.ResolveLogger(s.options...)
	tokens := auth.NewTokenManager(auth.TokenManagerConfig{
		Cache:       tokenCache,
		HTTPClient:  s.httpClient,
		RenewBefore: cfg.TokenRenewBefore(),
		DefaultTTL:  cfg.DefaultTokenTTL(),
		Logger:      logger,
	})

	rest := transport.NewRESTAdapter(doer)
	if cfg.ResponseBodyLimitBytes > 0 {
		rest.MaxResponseBodyBytes = cfg.ResponseBodyLimitBytes
	}

	base := []core.Option{
		core.WithCredentials(creds),
		core.WithTokenSource(tokens),
		core.WithTransport(rest),
	}
	if s.rateLimited {
		store := s.rateLimits
		if store == nil {
			store = ratelimit.NewMemoryStateStore()
		}
		base = append(base, core.WithRateLimitPolicy(ratelimit.NewAdaptivePolicy(store)))
	}

	client, err := core.NewClient(cfg, append(base, s.options...)...)
	if err != nil {
		return nil, err
	}
	return NewAdapter(client, tokens, s.catalog)
}

// NewAdapter wraps an existing client. tokens may be nil when the client uses
// a token source that cannot be invalidated.
func NewAdapter(client *core.Client, tokens *auth.TokenManager, catalog *resources.Catalog) (*Adapter, error) {
	if client == nil {
		return nil, core.NewBadInputError("acumatica: client is required", nil)
	}
	service := resources.NewService(client, catalog)
	adapter := &Adapter{
		client:    client,
		tokens:    tokens,
		resources: service,
	}
	adapter.commands = Commands{
		Upsert: command.NewUpsertEntityCommand(service),
		Delete: command.NewDeleteEntityCommand(service),
		Invoke: command.NewInvokeActionCommand(service),
	}
	if tokens != nil {
		adapter.commands.InvalidateToken = command.NewInvalidateTokenCommand(tokens)
	}
	adapter.queries = Queries{
		Get:        query.NewGetEntityQuery(service),
		List:       query.NewListEntitiesQuery(service),
		RunInquiry: query.NewRunInquiryQuery(service),
		Classify:   query.NewClassifyNotificationQuery(),
	}
	return adapter, nil
}

func (a *Adapter) Client() *core.Client {
	if a == nil {
		return nil
	}
	return a.client
}

func (a *Adapter) Tokens() *auth.TokenManager {
	if a == nil {
		return nil
	}
	return a.tokens
}

func (a *Adapter) Resources() *resources.Service {
	if a == nil {
		return nil
	}
	return a.resources
}

func (a *Adapter) Commands() Commands {
	if a == nil {
		return Commands{}
	}
	return a.commands
}

func (a *Adapter) Queries() Queries {
	if a == nil {
		return Queries{}
	}
	return a.queries
}
