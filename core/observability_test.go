package core

import (
	"context"
	"net/http"
	"testing"
)

func TestClientObservability_RequestSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	transport := &fakeTransport{handler: func(int, TransportRequest) (TransportResponse, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	}}
	client := newTestClient(t, transport, nil,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	if _, err := client.Request(context.Background(), http.MethodGet, "/Customer", nil, nil); err != nil {
		t.Fatalf("request: %v", err)
	}
	if !hasCounter(metrics.counters, "acumatica.request.total", "success") {
		t.Fatalf("expected acumatica.request.total success counter")
	}
	if !hasHistogram(metrics.histograms, "acumatica.request.duration_ms", "success") {
		t.Fatalf("expected acumatica.request.duration_ms histogram")
	}
	if !hasLog(logger.snapshot(), "debug", "request succeeded", "request") {
		t.Fatalf("expected request succeeded structured log")
	}
	for _, counter := range metrics.counters {
		if counter.name == "acumatica.request.total" && counter.tags["status_code"] != "200" {
			t.Fatalf("expected status_code tag, got %#v", counter.tags)
		}
	}
}

func TestClientObservability_RequestFailure(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	transport := &fakeTransport{handler: func(int, TransportRequest) (TransportResponse, error) {
		return jsonResponse(http.StatusInternalServerError, `{"message":"boom"}`), nil
	}}
	client := newTestClient(t, transport, nil,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	if _, err := client.Request(context.Background(), http.MethodGet, "/Customer", nil, nil); err == nil {
		t.Fatalf("expected request failure")
	}
	if !hasCounter(metrics.counters, "acumatica.request.total", "failure") {
		t.Fatalf("expected failure counter")
	}
	if !hasLog(logger.snapshot(), "error", "request failed", "request") {
		t.Fatalf("expected request failed log")
	}
}

func TestClientObservability_PaginationSummary(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	client := newTestClient(t, pagedTransport(t, 120, -1), nil,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if _, err := client.RequestAllItems(context.Background(), http.MethodGet, "/Customer", nil, nil, 0); err != nil {
		t.Fatalf("request all items: %v", err)
	}
	if !hasCounter(metrics.counters, "acumatica.request_all_items.total", "success") {
		t.Fatalf("expected pagination counter")
	}
	for _, record := range logger.snapshot() {
		if record.fields["event_type"] == "request_all_items" {
			if record.fields["pages"] != 2 || record.fields["items"] != 120 {
				t.Fatalf("expected pages=2 items=120, got %#v", record.fields)
			}
			return
		}
	}
	t.Fatalf("expected pagination summary log")
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}
