package acumatica

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goliatone/go-acumatica/auth"
	"github.com/goliatone/go-acumatica/command"
	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/query"
)

type erpServer struct {
	mu         sync.Mutex
	tokenCalls int
	paths      []string
	rejectNext bool
}

func (s *erpServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/identity/connect/token" {
			s.mu.Lock()
			s.tokenCalls++
			s.mu.Unlock()
			_, _ = w.Write([]byte(`{"access_token":"erp-token","token_type":"Bearer","expires_in":3600}`))
			return
		}

		s.mu.Lock()
		s.paths = append(s.paths, r.Method+" "+r.URL.Path)
		reject := s.rejectNext
		s.rejectNext = false
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer erp-token" {
			t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
		}
		if reject {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"expired"}`))
			return
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":         "guid-1",
				"CustomerID": map[string]any{"value": "C000001"},
				"Status":     map[string]any{"value": "Active"},
			})
		case http.MethodPut:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(body)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func testCredentials(instanceURL string) Credentials {
	return Credentials{
		InstanceURL:  instanceURL,
		APIVersion:   "23.200.001",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Username:     "admin",
		Password:     "password",
	}
}

func TestNew_WiresTokenManagerTransportAndResources(t *testing.T) {
	erp := &erpServer{}
	server := httptest.NewServer(erp.handler(t))
	defer server.Close()

	adapter, err := New(DefaultConfig(), testCredentials(server.URL), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	ctx := context.Background()

	record, err := adapter.Queries().Get.Query(ctx, query.GetEntityMessage{Resource: "Customer", Keys: []string{"C000001"}})
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if record["CustomerID"] != "C000001" || record["Status"] != "Active" {
		t.Fatalf("expected simplified record, got %#v", record)
	}

	if err := adapter.Commands().Upsert.Execute(ctx, command.UpsertEntityMessage{
		Resource: "Customer",
		Record:   map[string]any{"CustomerID": "C000001", "CustomerName": "Acme"},
	}); err != nil {
		t.Fatalf("upsert customer: %v", err)
	}

	erp.mu.Lock()
	defer erp.mu.Unlock()
	if erp.tokenCalls != 1 {
		t.Fatalf("expected one token exchange across calls, got %d", erp.tokenCalls)
	}
	expected := []string{
		"GET /entity/Default/23.200.001/Customer/C000001",
		"PUT /entity/Default/23.200.001/Customer",
	}
	if len(erp.paths) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, erp.paths)
	}
	for i := range expected {
		if erp.paths[i] != expected[i] {
			t.Fatalf("expected %q, got %q", expected[i], erp.paths[i])
		}
	}
}

func TestNew_UnauthorizedRetriesWithFreshToken(t *testing.T) {
	erp := &erpServer{rejectNext: true}
	server := httptest.NewServer(erp.handler(t))
	defer server.Close()

	adapter, err := New(DefaultConfig(), testCredentials(server.URL), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if _, err := adapter.Client().Request(context.Background(), http.MethodGet, "/Customer/C1", nil, nil); err != nil {
		t.Fatalf("request: %v", err)
	}

	erp.mu.Lock()
	defer erp.mu.Unlock()
	if erp.tokenCalls != 2 {
		t.Fatalf("expected token refresh after 401, got %d exchanges", erp.tokenCalls)
	}
	if len(erp.paths) != 2 {
		t.Fatalf("expected one retry, got %v", erp.paths)
	}
}

func TestNew_SharedTokenCacheAndInvalidate(t *testing.T) {
	erp := &erpServer{}
	server := httptest.NewServer(erp.handler(t))
	defer server.Close()

	cache := auth.NewMemoryTokenCache()
	creds := testCredentials(server.URL)
	adapter, err := New(DefaultConfig(), creds, WithHTTPClient(server.Client()), WithTokenCache(cache), WithAdaptiveRateLimit(nil))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	ctx := context.Background()
	if _, err := adapter.Client().Request(ctx, http.MethodGet, "/Customer/C1", nil, nil); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, found, _ := cache.Get(ctx, creds.CacheKey()); !found {
		t.Fatalf("expected token in shared cache")
	}

	if err := adapter.Commands().InvalidateToken.Execute(ctx, command.InvalidateTokenMessage{
		InstanceURL: creds.InstanceURL,
		Username:    creds.Username,
	}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, found, _ := cache.Get(ctx, creds.CacheKey()); found {
		t.Fatalf("expected token removed from shared cache")
	}
}

type failingTokenCache struct{}

func (failingTokenCache) Get(context.Context, string) (core.CachedToken, bool, error) {
	return core.CachedToken{}, false, errors.New("cache unavailable")
}

func (failingTokenCache) Set(context.Context, string, core.CachedToken) error {
	return errors.New("cache unavailable")
}

func (failingTokenCache) Delete(context.Context, string) error { return nil }

type warnRecorder struct {
	mu    sync.Mutex
	warns []string
}

func (l *warnRecorder) Trace(string, ...any) {}
func (l *warnRecorder) Debug(string, ...any) {}
func (l *warnRecorder) Info(string, ...any)  {}
func (l *warnRecorder) Error(string, ...any) {}
func (l *warnRecorder) Fatal(string, ...any) {}

func (l *warnRecorder) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *warnRecorder) WithContext(context.Context) core.Logger { return l }

func TestNew_TokenManagerLogsThroughClientLogger(t *testing.T) {
	erp := &erpServer{}
	server := httptest.NewServer(erp.handler(t))
	defer server.Close()

	logger := &warnRecorder{}
	adapter, err := New(DefaultConfig(), testCredentials(server.URL),
		WithHTTPClient(server.Client()),
		WithTokenCache(failingTokenCache{}),
		WithClientOptions(core.WithLogger(logger)),
	)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if _, err := adapter.Client().Request(context.Background(), http.MethodGet, "/Customer/C1", nil, nil); err != nil {
		t.Fatalf("expected cache failure to fall back to an exchange: %v", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	seen := map[string]bool{}
	for _, msg := range logger.warns {
		seen[msg] = true
	}
	if !seen["token cache read failed"] || !seen["token cache write failed"] {
		t.Fatalf("expected cache failures logged, got %v", logger.warns)
	}
}

func TestNew_RejectsIncompleteCredentials(t *testing.T) {
	_, err := New(DefaultConfig(), Credentials{InstanceURL: "https://erp.example.com"})
	if !core.IsBadInputError(err) {
		t.Fatalf("expected bad input error, got %v", err)
	}
	if _, err := NewAdapter(nil, nil, nil); !core.IsBadInputError(err) {
		t.Fatalf("expected bad input error for nil client, got %v", err)
	}
}

func TestNewAdapter_WithoutTokenManagerOmitsInvalidate(t *testing.T) {
	client, err := core.NewClient(DefaultConfig(),
		core.WithCredentials(testCredentials("https://erp.example.com")),
		core.WithTokenSource(auth.NewTokenManager(auth.TokenManagerConfig{})),
		core.WithTransport(stubTransport{}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	adapter, err := NewAdapter(client, nil, nil)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if adapter.Commands().InvalidateToken != nil {
		t.Fatalf("expected no invalidate command without a token manager")
	}
	if adapter.Queries().Classify == nil || adapter.Resources() == nil {
		t.Fatalf("expected queries and resources to be wired")
	}
}

type stubTransport struct{}

func (stubTransport) Kind() string { return "stub" }

func (stubTransport) Do(context.Context, core.TransportRequest) (core.TransportResponse, error) {
	return core.TransportResponse{StatusCode: http.StatusNoContent}, nil
}
