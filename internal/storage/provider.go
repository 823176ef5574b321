package storage

import (
	"context"
	"fmt"
	"threadmark/internal/providers"
	"threadmark/internal/storage/interfaces"
	"threadmark/internal/structures"
	"time"
)

// NewKeyValueProvider opens the store selected by storage.driver and wraps it
// with persistence timing.
func NewKeyValueProvider(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) (interfaces.KeyValueStoreInterface, error) {
	var (
		store interfaces.KeyValueStoreInterface
		err   error
	)

	switch conf.Storage.Driver {
	case "memory":
		store = NewMemoryStore()
	case "file":
		store, err = NewFileStore(conf.Storage.Path, compressor)
	case "pebble":
		store, err = NewPebbleStore(conf.Storage.Path)
	case "redis":
		store, err = NewRedisStore(conf.Storage.RedisURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", conf.Storage.Driver, err)
	}

	logger.Infof(providers.TypeApp, "Storage initialized: driver=%s key=%s", conf.Storage.Driver, conf.Storage.Key)

	return &InstrumentedStore{inner: store, metrics: metrics}, nil
}

// InstrumentedStore reports the duration of every Get and Set.
type InstrumentedStore struct {
	inner   interfaces.KeyValueStoreInterface
	metrics providers.MetricsProviderInterface
}

func NewInstrumentedStore(inner interfaces.KeyValueStoreInterface, metrics providers.MetricsProviderInterface) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, metrics: metrics}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	val, ok, err := s.inner.Get(ctx, key)
	s.metrics.ObservePersistenceDuration("get", time.Since(start))
	return val, ok, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value)
	s.metrics.ObservePersistenceDuration("set", time.Since(start))
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
