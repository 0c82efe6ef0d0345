package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/webhooks"
)

const shipConfirmBody = `{"Query":"SalesOrderShipConfirm","Id":"n-1","Inserted":[{"OrderNbr":"SO001"}],"Deleted":[]}`

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(envLookup(nil))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != defaultAddr || cfg.DBDriver != "sqlite3" || cfg.Event != webhooks.EventAll {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.TokenHeader != defaultTokenHeader || cfg.ShutdownTimeout != defaultShutdownTimeout {
		t.Fatalf("unexpected header or timeout defaults %#v", cfg)
	}
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	cfg, err := loadConfig(envLookup(map[string]string{
		"ACUMATICA_WEBHOOK_ADDR":            ":9090",
		"ACUMATICA_WEBHOOK_EVENT":           "salesOrder.shipped",
		"ACUMATICA_WEBHOOK_INCLUDE_DELETED": "true",
		"ACUMATICA_WEBHOOK_TOKEN":           "s3cret",
		"ACUMATICA_WEBHOOK_BURST_WINDOW":    "5s",
		"ACUMATICA_DB_DRIVER":               "postgres",
		"ACUMATICA_DB_DSN":                  "postgres://localhost/erp",
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Event != webhooks.EventSalesOrderShipped || !cfg.IncludeDeleted {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if cfg.Token != "s3cret" || cfg.BurstWindow != 5*time.Second || cfg.DBDriver != "postgres" {
		t.Fatalf("unexpected config %#v", cfg)
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"event":  {"ACUMATICA_WEBHOOK_EVENT": "order.teleported"},
		"bool":   {"ACUMATICA_WEBHOOK_INCLUDE_DELETED": "maybe"},
		"burst":  {"ACUMATICA_WEBHOOK_BURST_WINDOW": "soon"},
		"driver": {"ACUMATICA_DB_DRIVER": "mysql"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadConfig(envLookup(env)); !core.IsBadInputError(err) {
				t.Fatalf("expected bad input error, got %v", err)
			}
		})
	}
}

func TestNewLogger_WritesJSONAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info")

	logger.Debug("hidden")
	logger.Info("acumatica-webhook listening", "addr", ":8080")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one entry above debug, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log entry %q: %v", lines[0], err)
	}
	if entry["msg"] != "acumatica-webhook listening" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if entry["addr"] != ":8080" || entry["logger"] != loggerName {
		t.Fatalf("expected fields on entry, got %#v", entry)
	}
}

func newTestServer(t *testing.T, cfg config) *httptest.Server {
	t.Helper()
	logger := newLogger(io.Discard, "error")
	ledger, closeLedger, err := openLedger(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = closeLedger() })

	registry, recorder, err := newMetrics()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	processor := newProcessor(cfg, ledger, logSink(logger), logger)
	server := httptest.NewServer(newRouter(processor, registry, recorder, logger))
	t.Cleanup(server.Close)
	return server
}

func post(t *testing.T, server *httptest.Server, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, server.URL+webhookPath, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, string(raw)
}

func TestRouter_WebhookMetricsAndHealth(t *testing.T) {
	cfg, _ := loadConfig(envLookup(nil))
	server := newTestServer(t, cfg)

	resp, body := post(t, server, shipConfirmBody, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, `"salesOrder.shipped"`) {
		t.Fatalf("expected classified record, got %s", body)
	}

	health, err := server.Client().Get(server.URL + healthPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	_ = health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("expected healthy, got %d", health.StatusCode)
	}

	metrics, err := server.Client().Get(server.URL + metricsPath)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer metrics.Body.Close()
	raw, _ := io.ReadAll(metrics.Body)
	if !strings.Contains(string(raw), `acumatica_operations_total{method="POST",operation="webhook",status="success",status_code="200"} 1`) {
		t.Fatalf("expected webhook counter in metrics output:\n%s", raw)
	}
}

func TestRouter_TokenVerifierRejectsUnsignedDeliveries(t *testing.T) {
	cfg, _ := loadConfig(envLookup(map[string]string{"ACUMATICA_WEBHOOK_TOKEN": "s3cret"}))
	server := newTestServer(t, cfg)

	if resp, _ := post(t, server, shipConfirmBody, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp, body := post(t, server, shipConfirmBody, map[string]string{defaultTokenHeader: "s3cret"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
}

func TestOpenLedger_SQLiteDeduplicatesRedeliveries(t *testing.T) {
	cfg, _ := loadConfig(envLookup(map[string]string{
		"ACUMATICA_DB_DRIVER": "sqlite3",
		"ACUMATICA_DB_DSN":    fmt.Sprintf("file:acumatica-webhook-%d?mode=memory&cache=shared", time.Now().UnixNano()),
	}))
	logger := newLogger(io.Discard, "error")
	ledger, closeLedger, err := openLedger(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer func() { _ = closeLedger() }()

	published := 0
	processor := newProcessor(cfg, ledger, webhooks.EventSinkFunc(func(context.Context, []webhooks.EventRecord) error {
		published++
		return nil
	}), logger)
	for i := 0; i < 2; i++ {
		result, err := processor.Process(context.Background(), webhooks.Delivery{Body: []byte(shipConfirmBody)})
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
		if i == 1 && !result.Deduped {
			t.Fatalf("expected redelivery to be deduplicated")
		}
	}
	if published != 1 {
		t.Fatalf("expected one publish, got %d", published)
	}
}
