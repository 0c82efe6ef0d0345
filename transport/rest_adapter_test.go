package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-acumatica/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestRESTAdapter_SendsHeadersQueryAndBody(t *testing.T) {
	var (
		gotMethod string
		gotQuery  map[string]string
		gotBody   string
		gotAuth   string
		gotAgent  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = map[string]string{
			"$filter": r.URL.Query().Get("$filter"),
			"$top":    r.URL.Query().Get("$top"),
			"keep":    r.URL.Query().Get("keep"),
		}
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:  "put",
		URL:     server.URL + "/entity/Default/23.200.001/Customer?keep=1",
		Headers: map[string]string{"Authorization": "Bearer t"},
		Query:   map[string]string{"$filter": "Status eq 'Active'", "$top": "100"},
		Body:    []byte(`{"CustomerID":{"value":"C1"}}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.StatusCode)
	}
	if string(res.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", string(res.Body))
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %q", gotMethod)
	}
	if gotQuery["$filter"] != "Status eq 'Active'" || gotQuery["$top"] != "100" || gotQuery["keep"] != "1" {
		t.Fatalf("unexpected query %#v", gotQuery)
	}
	if gotBody != `{"CustomerID":{"value":"C1"}}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
	if gotAuth != "Bearer t" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotAgent != defaultUserAgent {
		t.Fatalf("expected default user agent, got %q", gotAgent)
	}
}

func TestRESTAdapter_ReturnsErrorStatusesWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	res, err := NewRESTAdapter(server.Client()).Do(context.Background(), core.TransportRequest{URL: server.URL})
	if err != nil {
		t.Fatalf("expected status to be returned, got error %v", err)
	}
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.StatusCode)
	}
	if res.Headers["Retry-After"] != "3" {
		t.Fatalf("expected Retry-After header, got %#v", res.Headers)
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != ErrorTransportFailure {
		t.Fatalf("expected %q text code, got %q", ErrorTransportFailure, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), core.TransportRequest{})
	if err == nil {
		t.Fatalf("expected nil adapter error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != ErrorTransportInternal {
		t.Fatalf("expected %q text code, got %q", ErrorTransportInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}

func TestRESTAdapter_RequiresURL(t *testing.T) {
	_, err := NewRESTAdapter(nil).Do(context.Background(), core.TransportRequest{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != ErrorTransportBadInput {
		t.Fatalf("expected %q text code, got %q", ErrorTransportBadInput, rich.TextCode)
	}
}
