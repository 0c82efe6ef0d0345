package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type clientBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	credentials     CredentialsResolver
	tokens          TokenSource
	transport       TransportAdapter
	rateLimitPolicy RateLimitPolicy
	sleep           func(ctx context.Context, d time.Duration) error
}

type Option func(*clientBuilder)

// ResolveLogger returns the logger a client built with opts would use, so
// collaborators built alongside the client log through the same sink.
func ResolveLogger(opts ...Option) Logger {
	builder := clientBuilder{}
	for _, opt := range opts {
		if opt != nil {
			opt(&builder)
		}
	}
	return builder.resolveLogger()
}

func (b clientBuilder) resolveLogger() Logger {
	provider, logger := glog.Resolve("acumatica", b.loggerProvider, b.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("acumatica"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	return logger
}

func WithLogger(logger Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *clientBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *clientBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *clientBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCredentials(creds Credentials) Option {
	return func(b *clientBuilder) {
		b.credentials = StaticCredentials(creds)
	}
}

func WithCredentialsResolver(resolver CredentialsResolver) Option {
	return func(b *clientBuilder) {
		b.credentials = resolver
	}
}

func WithTokenSource(source TokenSource) Option {
	return func(b *clientBuilder) {
		b.tokens = source
	}
}

func WithTransport(adapter TransportAdapter) Option {
	return func(b *clientBuilder) {
		b.transport = adapter
	}
}

// WithRateLimitPolicy enables client-side throttling. Without a policy every
// 429 is surfaced as is and nothing is blocked up front.
func WithRateLimitPolicy(policy RateLimitPolicy) Option {
	return func(b *clientBuilder) {
		b.rateLimitPolicy = policy
	}
}

// WithSleeper replaces the wait used between polling attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(b *clientBuilder) {
		b.sleep = sleep
	}
}

func defaultClientBuilder(runtime Config) clientBuilder {
	loggerProvider, logger := glog.Resolve("acumatica", nil, nil)
	return clientBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		credentials:     ContextCredentials{},
		sleep:           sleepContext,
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw map, typically decoded from a file or
// assembled from environment variables.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.PageSize > 0 {
		layer["page_size"] = cfg.PageSize
	}
	if includeZero || cfg.MaxPageSize > 0 {
		layer["max_page_size"] = cfg.MaxPageSize
	}
	if includeZero || cfg.RequestTimeoutSeconds > 0 {
		layer["request_timeout_seconds"] = cfg.RequestTimeoutSeconds
	}
	if includeZero || cfg.ResponseBodyLimitBytes > 0 {
		layer["response_body_limit_bytes"] = cfg.ResponseBodyLimitBytes
	}
	if includeZero || cfg.TokenRenewBeforeSeconds > 0 {
		layer["token_renew_before_seconds"] = cfg.TokenRenewBeforeSeconds
	}
	if includeZero || cfg.DefaultTokenTTLSeconds > 0 {
		layer["default_token_ttl_seconds"] = cfg.DefaultTokenTTLSeconds
	}

	poll := map[string]any{}
	if includeZero || cfg.Poll.MaxAttempts > 0 {
		poll["max_attempts"] = cfg.Poll.MaxAttempts
	}
	if includeZero || cfg.Poll.IntervalMS > 0 {
		poll["interval_ms"] = cfg.Poll.IntervalMS
	}
	if len(poll) > 0 {
		layer["poll"] = poll
	}
	return layer
}
