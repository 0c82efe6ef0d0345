package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/migrations"
	sqlstore "github.com/goliatone/go-acumatica/store/sql"
	"github.com/goliatone/go-acumatica/webhooks"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.dsn
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "acumatica-webhook"
}

// openLedger returns the durable delivery ledger when a DSN is configured and
// an in-memory ledger otherwise. The returned closer is never nil.
func openLedger(ctx context.Context, cfg config, logger core.Logger) (webhooks.DeliveryLedger, func() error, error) {
	if cfg.DBDSN == "" {
		logger.Warn("ACUMATICA_DB_DSN not set, delivery ledger is in memory")
		return webhooks.NewMemoryDeliveryLedger(), func() error { return nil }, nil
	}

	sqlDB, err := sql.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, core.NewInternalError(err, "acumatica-webhook: open database", map[string]any{"driver": cfg.DBDriver})
	}
	target, err := migrations.DialectForDriver(cfg.DBDriver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	var dialect schema.Dialect = sqlitedialect.New()
	if target == migrations.DialectPostgres {
		dialect = pgdialect.New()
	} else {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: cfg.DBDriver, dsn: cfg.DBDSN, debug: cfg.DBDebug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, core.NewInternalError(err, "acumatica-webhook: persistence client", nil)
	}
	if _, err := migrations.Register(client, target); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, core.NewInternalError(err, "acumatica-webhook: migrate", nil)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("delivery ledger ready", "driver", cfg.DBDriver)
	return factory.WebhookDeliveryStore(), client.Close, nil
}
