package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testCredentials() Credentials {
	return Credentials{
		InstanceURL:  "https://erp.example.com/",
		APIVersion:   "23.200.001",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Username:     "admin",
		Password:     "secret",
	}
}

type stubTokenSource struct {
	mu          sync.Mutex
	issued      int
	invalidated []string
	failAfter   int
	err         error
}

func (s *stubTokenSource) Token(_ context.Context, creds Credentials) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && s.issued >= s.failAfter {
		return "", s.err
	}
	s.issued++
	return fmt.Sprintf("tok-%d", s.issued), nil
}

func (s *stubTokenSource) Invalidate(_ context.Context, instanceURL string, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, TokenCacheKey(instanceURL, username))
	return nil
}

type transportHandler func(call int, req TransportRequest) (TransportResponse, error)

type fakeTransport struct {
	mu       sync.Mutex
	requests []TransportRequest
	handler  transportHandler
}

func (*fakeTransport) Kind() string { return "fake" }

func (f *fakeTransport) Do(_ context.Context, req TransportRequest) (TransportResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()
	return f.handler(call, req)
}

func (f *fakeTransport) calls() []TransportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TransportRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func jsonResponse(status int, body string) TransportResponse {
	return TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

func newTestClient(t *testing.T, transport *fakeTransport, tokens *stubTokenSource, opts ...Option) *Client {
	t.Helper()
	if tokens == nil {
		tokens = &stubTokenSource{}
	}
	base := []Option{
		WithCredentials(testCredentials()),
		WithTokenSource(tokens),
		WithTransport(transport),
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
	}
	client, err := NewClient(Config{}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
