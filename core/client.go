package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Client executes calls against the entity endpoint of one or more Acumatica
// instances.
type Client struct {
	config          Config
	logger          Logger
	metricsRecorder MetricsRecorder
	credentials     CredentialsResolver
	tokens          TokenSource
	transport       TransportAdapter
	rateLimitPolicy RateLimitPolicy
	sleep           func(ctx context.Context, d time.Duration) error
}

// EntityRequest describes one call. Endpoint is relative to the entity base
// url; URI, when set, is used verbatim instead.
type EntityRequest struct {
	Method   string
	Endpoint string
	URI      string
	Body     any
	Query    map[string]string
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       any
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	builder := defaultClientBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	logger := builder.resolveLogger()

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.credentials == nil {
		builder.credentials = ContextCredentials{}
	}
	if builder.sleep == nil {
		builder.sleep = sleepContext
	}
	if builder.tokens == nil {
		return nil, newBadInputError("core: token source is required", nil)
	}
	if builder.transport == nil {
		return nil, newBadInputError("core: transport adapter is required", nil)
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, MapError(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, MapError(err)
	}

	return &Client{
		config:          finalConfig,
		logger:          logger,
		metricsRecorder: builder.metricsRecorder,
		credentials:     builder.credentials,
		tokens:          builder.tokens,
		transport:       builder.transport,
		rateLimitPolicy: builder.rateLimitPolicy,
		sleep:           builder.sleep,
	}, nil
}

func (c *Client) Config() Config {
	if c == nil {
		return DefaultConfig()
	}
	return c.config
}

// Request sends one call and returns the decoded JSON body.
func (c *Client) Request(
	ctx context.Context,
	method string,
	endpoint string,
	body any,
	query map[string]string,
) (any, error) {
	res, err := c.Do(ctx, EntityRequest{
		Method:   method,
		Endpoint: endpoint,
		Body:     body,
		Query:    query,
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Do sends one call. A 401 invalidates the cached token and the call is
// retried exactly once with a fresh token.
func (c *Client) Do(ctx context.Context, req EntityRequest) (res Response, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"method":   normalizeMethod(req.Method),
		"endpoint": req.Endpoint,
	}
	defer func() {
		fields["status_code"] = res.StatusCode
		c.observeOperation(ctx, startedAt, "request", err, fields)
	}()

	if c == nil || c.tokens == nil || c.transport == nil {
		return Response{}, newBadInputError("core: client is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	creds, err := c.credentials.Resolve(ctx)
	if err != nil {
		return Response{}, err
	}
	target := strings.TrimSpace(req.URI)
	if target == "" {
		target = creds.EntityBaseURL() + req.Endpoint
	}
	fields["url"] = target

	payload, err := encodeBody(req.Body)
	if err != nil {
		return Response{}, err
	}
	call := TransportRequest{
		Method:               normalizeMethod(req.Method),
		URL:                  target,
		Query:                nonEmptyQuery(req.Query),
		Body:                 payload,
		Timeout:              c.config.RequestTimeout(),
		MaxResponseBodyBytes: c.config.ResponseBodyLimitBytes,
	}

	limitKey := rateLimitKey(creds)
	if err := c.beforeCall(ctx, limitKey); err != nil {
		return Response{}, err
	}

	token, err := c.tokens.Token(ctx, creds)
	if err != nil {
		return Response{}, err
	}

	raw, err := c.transport.Do(ctx, c.sign(call, creds, token))
	if err == nil && raw.StatusCode == http.StatusUnauthorized {
		fields["retried"] = true
		raw, err = c.retryUnauthorized(ctx, call, creds, fields)
		if err != nil {
			return Response{StatusCode: raw.StatusCode}, err
		}
	}
	if err != nil {
		return Response{}, NewAPIError(err, 0, nil, requestMetadata(call))
	}
	c.afterCall(ctx, limitKey, raw)

	switch {
	case raw.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := parseRetryAfter(raw.Headers, time.Now().UTC())
		return Response{StatusCode: raw.StatusCode}, NewRateLimitError(retryAfter, requestMetadata(call))
	case raw.StatusCode >= http.StatusBadRequest:
		return Response{StatusCode: raw.StatusCode}, NewAPIError(nil, raw.StatusCode, raw.Body, requestMetadata(call))
	}

	return Response{
		StatusCode: raw.StatusCode,
		Headers:    raw.Headers,
		Body:       decodeBody(raw.Body),
	}, nil
}

// retryUnauthorized refreshes the token and replays call once. Any failure of
// the replay is reported as an API error.
func (c *Client) retryUnauthorized(
	ctx context.Context,
	call TransportRequest,
	creds Credentials,
	fields map[string]any,
) (TransportResponse, error) {
	if err := c.tokens.Invalidate(ctx, creds.InstanceURL, creds.Username); err != nil {
		c.logWithLevel(ctx, "warn", "token invalidation failed", map[string]any{
			"error":    err.Error(),
			"instance": creds.BaseURL(),
		})
	}
	token, err := c.tokens.Token(ctx, creds)
	if err != nil {
		return TransportResponse{}, NewAPIError(err, 0, nil, requestMetadata(call))
	}
	raw, err := c.transport.Do(ctx, c.sign(call, creds, token))
	if err != nil {
		return TransportResponse{}, NewAPIError(err, 0, nil, requestMetadata(call))
	}
	if raw.StatusCode >= http.StatusBadRequest {
		fields["retry_status_code"] = raw.StatusCode
		return raw, NewAPIError(nil, raw.StatusCode, raw.Body, requestMetadata(call))
	}
	return raw, nil
}

func (c *Client) sign(call TransportRequest, creds Credentials, token string) TransportRequest {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}
	if branch := strings.TrimSpace(creds.BranchID); branch != "" {
		headers["Branch"] = branch
	}
	call.Headers = headers
	return call
}

func (c *Client) beforeCall(ctx context.Context, key RateLimitKey) error {
	if c.rateLimitPolicy == nil {
		return nil
	}
	err := c.rateLimitPolicy.BeforeCall(ctx, key)
	if err == nil {
		return nil
	}
	var converter interface{ ToServiceError() *goerrors.Error }
	if errors.As(err, &converter) {
		return converter.ToServiceError()
	}
	return err
}

func (c *Client) afterCall(ctx context.Context, key RateLimitKey, raw TransportResponse) {
	if c.rateLimitPolicy == nil {
		return
	}
	meta := ResponseMeta{
		StatusCode: raw.StatusCode,
		Headers:    raw.Headers,
		Metadata:   raw.Metadata,
	}
	if retryAfter, ok := parseRetryAfter(raw.Headers, time.Now().UTC()); ok {
		meta.RetryAfter = &retryAfter
	}
	if err := c.rateLimitPolicy.AfterCall(ctx, key, meta); err != nil {
		c.logWithLevel(ctx, "warn", "rate limit state update failed", map[string]any{
			"error": err.Error(),
		})
	}
}

func rateLimitKey(creds Credentials) RateLimitKey {
	return RateLimitKey{
		InstanceURL: creds.BaseURL(),
		Username:    creds.Username,
		BucketKey:   "entity",
	}
}

func requestMetadata(call TransportRequest) map[string]any {
	return map[string]any{
		"method": call.Method,
		"url":    call.URL,
	}
}

func normalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return http.MethodGet
	}
	return method
}

// encodeBody marshals body, returning nil for absent or empty payloads.
func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	var encoded []byte
	switch typed := body.(type) {
	case []byte:
		encoded = typed
	case json.RawMessage:
		encoded = typed
	default:
		out, err := json.Marshal(body)
		if err != nil {
			return nil, newBadInputError("core: request body is not valid json", map[string]any{
				"error": err.Error(),
			})
		}
		encoded = out
	}
	switch strings.TrimSpace(string(encoded)) {
	case "", "null", "{}", "[]", `""`:
		return nil, nil
	}
	return encoded, nil
}

// decodeBody returns nil for an empty body and the raw text when the body is
// not JSON.
func decodeBody(body []byte) any {
	if strings.TrimSpace(string(body)) == "" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	return decoded
}

func nonEmptyQuery(query map[string]string) map[string]string {
	if len(query) == 0 {
		return nil
	}
	out := make(map[string]string, len(query))
	for key, value := range query {
		if strings.TrimSpace(key) == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseRetryAfter(headers map[string]string, now time.Time) (time.Duration, bool) {
	raw := headerValue(headers, "Retry-After")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := http.ParseTime(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
