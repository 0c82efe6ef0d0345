package sqlstore

import (
	"github.com/goliatone/go-acumatica/security"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the bun backed stores from a persistence client or
// a bare *bun.DB.
type RepositoryFactory struct {
	db     *bun.DB
	secret security.SecretProvider

	tokenStore           *TokenStore
	webhookDeliveryStore *WebhookDeliveryStore
	rateLimitStateStore  *RateLimitStateStore
}

type FactoryOption func(*RepositoryFactory)

// WithSecretProvider seals persisted tokens with provider.
func WithSecretProvider(provider security.SecretProvider) FactoryOption {
	return func(f *RepositoryFactory) {
		f.secret = provider
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return storeNotConfigured("repository factory")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.tokenStore != nil && f.webhookDeliveryStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) TokenStore() *TokenStore {
	if f == nil {
		return nil
	}
	return f.tokenStore
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.webhookDeliveryStore
}

func (f *RepositoryFactory) RateLimitStateStore() *RateLimitStateStore {
	if f == nil {
		return nil
	}
	return f.rateLimitStateStore
}

func (f *RepositoryFactory) initStores() error {
	tokenStore, err := NewTokenStore(f.db, f.secret)
	if err != nil {
		return err
	}
	webhookDeliveryStore, err := NewWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	rateLimitStateStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.tokenStore = tokenStore
	f.webhookDeliveryStore = webhookDeliveryStore
	f.rateLimitStateStore = rateLimitStateStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, storeValidation("client", "persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, storeValidation("client", "bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, storeValidation("client", "persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, storeValidation("client", "unsupported persistence client type")
	}
}
