package prommetrics

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/devkit"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRecorder_FoldsClientMetricsIntoLabelledVectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	ctx := context.Background()
	tags := map[string]string{"operation": "request", "status": "success", "method": "GET", "status_code": "200", "ignored": "x"}
	recorder.IncCounter(ctx, "acumatica.request.total", 1, tags)
	recorder.IncCounter(ctx, "acumatica.request.total", 2, tags)
	recorder.ObserveHistogram(ctx, "acumatica.request.duration_ms", 42, tags)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var counted, observed bool
	for _, family := range families {
		switch family.GetName() {
		case "acumatica_operations_total":
			metric := family.GetMetric()[0]
			if metric.GetCounter().GetValue() != 3 {
				t.Fatalf("expected counter 3, got %v", metric.GetCounter().GetValue())
			}
			if len(metric.GetLabel()) != len(labelNames) {
				t.Fatalf("expected fixed label set, got %d labels", len(metric.GetLabel()))
			}
			counted = true
		case "acumatica_operation_duration_ms":
			histogram := family.GetMetric()[0].GetHistogram()
			if histogram.GetSampleCount() != 1 || histogram.GetSampleSum() != 42 {
				t.Fatalf("unexpected histogram %v/%v", histogram.GetSampleCount(), histogram.GetSampleSum())
			}
			observed = true
		}
	}
	if !counted || !observed {
		t.Fatalf("expected both families, counted=%v observed=%v", counted, observed)
	}
}

func TestRecorder_DoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewRecorder(registry); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewRecorder(registry); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := NewRecorder(registry, WithNamespace("erp_two")); err != nil {
		t.Fatalf("expected distinct namespace to register: %v", err)
	}
}

func TestOperationFromName(t *testing.T) {
	cases := map[string]string{
		"acumatica.request.total":     "request",
		"acumatica.token.duration_ms": "token",
		"custom.thing":                "custom",
		"":                            "unknown",
	}
	for name, expected := range cases {
		if got := OperationFromName(name); got != expected {
			t.Fatalf("OperationFromName(%q) = %q, expected %q", name, got, expected)
		}
	}
}

func TestRecorder_ReceivesClientRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	transport := devkit.NewFakeTransport(devkit.JSON(http.StatusOK, map[string]any{"CustomerID": map[string]any{"value": "C1"}}))
	client, err := devkit.NewClient(transport, core.WithMetricsRecorder(recorder))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.Request(context.Background(), http.MethodGet, "/Customer/C1", nil, nil); err != nil {
		t.Fatalf("request: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "acumatica_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == "success" {
					return
				}
			}
		}
	}
	t.Fatalf("expected a successful operation series")
}
