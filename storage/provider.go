// Package storage owns the artifact store used by background jobs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamrelay/config"
	"streamrelay/observability"
	"streamrelay/storage/adapters/fs"
	"streamrelay/storage/adapters/s3"
	"streamrelay/storage/types"
)

// healthKey is looked up once at start-up to prove the backend answers.
const healthKey = ".health-check"

var errNotInitialized = errors.New("storage not initialized; call Initialize() first")

type opener func(*config.StorageConfig, observability.Logger, observability.Metrics) (types.ObjectStorage, error)

var backends = map[string]opener{
	"fs": func(c *config.StorageConfig, l observability.Logger, m observability.Metrics) (types.ObjectStorage, error) {
		return fs.New(c, l, m)
	},
	"s3": func(c *config.StorageConfig, l observability.Logger, m observability.Metrics) (types.ObjectStorage, error) {
		return s3.NewClient(c, l, m)
	},
}

// Provider holds the process wide artifact store.
type Provider struct {
	mu      sync.RWMutex
	store   types.ObjectStorage
	backend string
}

var (
	instance *Provider
	once     sync.Once
)

func GetProvider() *Provider {
	once.Do(func() { instance = &Provider{} })
	return instance
}

// Initialize opens the backend named by cfg.Storage.Provider and checks
// it. It does nothing once a store is installed.
func (p *Provider) Initialize(cfg *config.Config, logger observability.Logger, metrics observability.Metrics) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		return nil
	}

	name := cfg.Storage.Provider
	open, ok := backends[name]
	switch {
	case name == "":
		return errors.New("failed to create storage: storage is not configured")
	case !ok:
		return fmt.Errorf("failed to create storage: unsupported storage provider: %s", name)
	}

	store, err := open(&cfg.Storage, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	if err := p.testConnection(store); err != nil {
		return fmt.Errorf("failed to verify storage connection: %w", err)
	}

	p.store, p.backend = store, name
	logger.Info(context.Background(), "storage initialized", observability.Fields{"provider": name})
	return nil
}

func (p *Provider) testConnection(store types.ObjectStorage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := store.Exists(ctx, healthKey)
	return err
}

// Set installs store directly, bypassing configuration.
func (p *Provider) Set(store types.ObjectStorage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store, p.backend = store, "custom"
}

func (p *Provider) GetStorage() (types.ObjectStorage, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.store == nil {
		return nil, errNotInitialized
	}
	return p.store, nil
}

// MustGetStorage is GetStorage for start-up code.
func (p *Provider) MustGetStorage() types.ObjectStorage {
	store, err := p.GetStorage()
	if err != nil {
		panic(err.Error())
	}
	return store
}

// Name reports the active backend: "fs", "s3" or "custom".
func (p *Provider) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backend
}

func (p *Provider) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store != nil
}

// Reset forgets the store. Tests only.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store, p.backend = nil, ""
}
