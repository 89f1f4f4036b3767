// Package kvstore provides the persistent string-keyed store every terminal cache
// is built on. Writes overwrite their key; there is no multi-key transaction.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/config"
)

// ErrQuota reports that a value could not be persisted. Callers log it and keep
// their in-memory state.
var ErrQuota = errors.New("kvstore: write rejected")

// Store is a string-keyed store. Get reports a missing key with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// ClosableStore is a Store owning resources that must be released on shutdown.
type ClosableStore interface {
	Store
	Close() error
}

// Open builds the backend selected in the configuration, wrapped with the
// configured per-value quota.
func Open(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (ClosableStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store ClosableStore
		err   error
	)

	switch strings.ToLower(cfg.Backend) {
	case "bolt", "":
		store, err = NewBoltStore(cfg.BoltPath)
	case "redis":
		store, err = NewRedisStore(ctx, RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("cache store opened", zap.String("backend", cfg.Backend), zap.Int("max_value_bytes", cfg.MaxValueBytes))

	if cfg.MaxValueBytes > 0 {
		return &quotaStore{ClosableStore: store, maxBytes: cfg.MaxValueBytes}, nil
	}
	return store, nil
}

// WithQuota rejects values larger than maxBytes with ErrQuota, leaving the prior
// value untouched.
func WithQuota(store Store, maxBytes int) Store {
	return &quotaStore{ClosableStore: nopCloser{store}, maxBytes: maxBytes}
}

type quotaStore struct {
	ClosableStore
	maxBytes int
}

func (q *quotaStore) Set(ctx context.Context, key, value string) error {
	if q.maxBytes > 0 && len(key)+len(value) > q.maxBytes {
		return fmt.Errorf("%w: %s needs %d bytes, limit %d", ErrQuota, key, len(key)+len(value), q.maxBytes)
	}
	return q.ClosableStore.Set(ctx, key, value)
}

type nopCloser struct {
	Store
}

func (nopCloser) Close() error { return nil }
