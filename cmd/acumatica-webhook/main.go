// Command acumatica-webhook receives Acumatica push notifications, classifies
// them into event records and exposes Prometheus metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-acumatica/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(nil, ".env")
	if err != nil {
		newLogger(os.Stderr, "info").Fatal("invalid configuration", "error", err.Error())
	}
	logger := newLogger(os.Stdout, cfg.LogLevel)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("acumatica-webhook stopped", "error", err.Error())
	}
}

func run(ctx context.Context, cfg config, logger core.Logger) error {
	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLedger(); err != nil {
			logger.Warn("close delivery ledger", "error", err.Error())
		}
	}()

	registry, recorder, err := newMetrics()
	if err != nil {
		return err
	}
	processor := newProcessor(cfg, ledger, logSink(logger), logger)
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: newRouter(processor, registry, recorder, logger),
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("acumatica-webhook listening", "addr", cfg.Addr, "event", string(cfg.Event))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("acumatica-webhook shutting down")
	return server.Shutdown(shutdownCtx)
}
