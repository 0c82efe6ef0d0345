package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-acumatica/adapters/prommetrics"
	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/webhooks"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	webhookPath = "/webhooks/acumatica"
	metricsPath = "/metrics"
	healthPath  = "/healthz"
)

// newProcessor builds the webhook pipeline. Records are published to sink;
// the ledger absorbs redeliveries.
func newProcessor(cfg config, ledger webhooks.DeliveryLedger, sink webhooks.EventSink, logger core.Logger) *webhooks.Processor {
	processor := webhooks.NewProcessor(ledger, sink, webhooks.ClassifyOptions{
		Event:          cfg.Event,
		IncludeDeleted: cfg.IncludeDeleted,
	})
	processor.Logger = logger
	switch {
	case cfg.HMACSecret != "":
		processor.Verifier = webhooks.HeaderHMACVerifier{Header: cfg.SignatureHeader, Prefix: "sha256=", Secret: cfg.HMACSecret}
	case cfg.Token != "":
		processor.Verifier = webhooks.HeaderTokenVerifier{Header: cfg.TokenHeader, Token: cfg.Token}
	}
	if cfg.BurstWindow > 0 {
		processor.Burst = webhooks.NewBurstController(webhooks.BurstOptions{
			Mode:   webhooks.BurstModeCoalesce,
			Window: cfg.BurstWindow,
		})
	}
	return processor
}

// logSink writes every record to the log. It stands in for a queue when the
// receiver runs on its own.
func logSink(logger core.Logger) webhooks.EventSink {
	return webhooks.EventSinkFunc(func(ctx context.Context, records []webhooks.EventRecord) error {
		for _, record := range records {
			logger.WithContext(ctx).Info("acumatica event",
				"event", string(record.Event),
				"action", record.Action,
				"query", record.Query,
				"notification_id", record.NotificationID,
			)
		}
		return nil
	})
}

func newRouter(processor *webhooks.Processor, registry *prometheus.Registry, recorder core.MetricsRecorder, logger core.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Handle(webhookPath, instrument(webhooks.NewHandler(processor, logger), recorder)).Methods(http.MethodPost)
	r.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc(healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	return r
}

func newMetrics() (*prometheus.Registry, *prommetrics.Recorder, error) {
	registry := prometheus.NewRegistry()
	recorder, err := prommetrics.NewRecorder(registry)
	if err != nil {
		return nil, nil, err
	}
	return registry, recorder, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func instrument(next http.Handler, recorder core.MetricsRecorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		status := "success"
		if rec.status >= http.StatusBadRequest {
			status = "failure"
		}
		tags := map[string]string{
			"operation":   "webhook",
			"status":      status,
			"method":      r.Method,
			"status_code": strconv.Itoa(rec.status),
		}
		recorder.IncCounter(r.Context(), "acumatica.webhook.total", 1, tags)
		recorder.ObserveHistogram(r.Context(), "acumatica.webhook.duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)
	})
}
