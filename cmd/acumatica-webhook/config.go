package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/webhooks"
	"github.com/joho/godotenv"
)

const (
	defaultAddr            = ":8080"
	defaultTokenHeader     = "X-Acumatica-Token"
	defaultSignatureHeader = "X-Acumatica-Signature"
	defaultShutdownTimeout = 10 * time.Second
)

type config struct {
	Addr            string
	Event           webhooks.Event
	IncludeDeleted  bool
	Token           string
	TokenHeader     string
	HMACSecret      string
	SignatureHeader string
	DBDriver        string
	DBDSN           string
	DBDebug         bool
	LogLevel        string
	BurstWindow     time.Duration
	ShutdownTimeout time.Duration
}

// loadConfig reads ACUMATICA_* variables, after loading any .env files
// present in the working directory.
func loadConfig(lookup func(string) (string, bool), envFiles ...string) (config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err != nil {
				return config{}, core.NewBadInputError("acumatica-webhook: load "+file, map[string]any{"error": err.Error()})
			}
		}
	}
	get := func(key string, fallback string) string {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return fallback
	}

	cfg := config{
		Addr:            get("ACUMATICA_WEBHOOK_ADDR", defaultAddr),
		Token:           get("ACUMATICA_WEBHOOK_TOKEN", ""),
		TokenHeader:     get("ACUMATICA_WEBHOOK_TOKEN_HEADER", defaultTokenHeader),
		HMACSecret:      get("ACUMATICA_WEBHOOK_HMAC_SECRET", ""),
		SignatureHeader: get("ACUMATICA_WEBHOOK_SIGNATURE_HEADER", defaultSignatureHeader),
		DBDriver:        get("ACUMATICA_DB_DRIVER", "sqlite3"),
		DBDSN:           get("ACUMATICA_DB_DSN", ""),
		LogLevel:        strings.ToLower(get("ACUMATICA_LOG_LEVEL", "info")),
		ShutdownTimeout: defaultShutdownTimeout,
	}

	event, ok := webhooks.ParseEvent(get("ACUMATICA_WEBHOOK_EVENT", ""))
	if !ok {
		return config{}, core.NewBadInputError("acumatica-webhook: unknown event filter", map[string]any{
			"event": get("ACUMATICA_WEBHOOK_EVENT", ""),
		})
	}
	cfg.Event = event

	var err error
	if cfg.IncludeDeleted, err = parseBool(get("ACUMATICA_WEBHOOK_INCLUDE_DELETED", "false"), "ACUMATICA_WEBHOOK_INCLUDE_DELETED"); err != nil {
		return config{}, err
	}
	if cfg.DBDebug, err = parseBool(get("ACUMATICA_DB_DEBUG", "false"), "ACUMATICA_DB_DEBUG"); err != nil {
		return config{}, err
	}
	if raw := get("ACUMATICA_WEBHOOK_BURST_WINDOW", ""); raw != "" {
		if cfg.BurstWindow, err = time.ParseDuration(raw); err != nil {
			return config{}, core.NewBadInputError("acumatica-webhook: invalid ACUMATICA_WEBHOOK_BURST_WINDOW", map[string]any{"value": raw})
		}
	}
	if raw := get("ACUMATICA_SHUTDOWN_TIMEOUT", ""); raw != "" {
		if cfg.ShutdownTimeout, err = time.ParseDuration(raw); err != nil {
			return config{}, core.NewBadInputError("acumatica-webhook: invalid ACUMATICA_SHUTDOWN_TIMEOUT", map[string]any{"value": raw})
		}
	}
	switch cfg.DBDriver {
	case "sqlite3", "postgres":
	default:
		return config{}, core.NewBadInputError("acumatica-webhook: ACUMATICA_DB_DRIVER must be sqlite3 or postgres", map[string]any{
			"driver": cfg.DBDriver,
		})
	}
	return cfg, nil
}

func parseBool(value string, key string) (bool, error) {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, core.NewBadInputError("acumatica-webhook: invalid "+key, map[string]any{"value": value})
	}
	return parsed, nil
}
