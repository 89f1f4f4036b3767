// Package cache implements time-stamped records over a kvstore.Store. A record is
// the JSON payload at its key plus the save time, in epoch milliseconds, at
// "<key>Timestamp". Unreadable records are indistinguishable from misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/kvstore"
)

// StalenessWindow is the age at which every cache in the system needs a refetch.
const StalenessWindow = 300_000 * time.Millisecond

const timestampSuffix = "Timestamp"

// ErrIdentityMismatch is logged when a scoped record belongs to someone else.
// Callers only ever observe it as a miss.
var ErrIdentityMismatch = errors.New("cache: record owned by another identity")

// Validator rejects payloads that must be treated as absent.
type Validator[T any] func(T) error

// Option customizes a TimestampedCache.
type Option func(*options)

type options struct {
	now          func() time.Time
	logger       *zap.Logger
	timestampKey string
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger attaches a logger for corrupt-record diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimestampKey stores the save time under a key other than "<key>Timestamp".
func WithTimestampKey(key string) Option {
	return func(o *options) { o.timestampKey = key }
}

// TimestampedCache stores one payload of type T under a fixed key.
type TimestampedCache[T any] struct {
	store        kvstore.Store
	key          string
	timestampKey string
	validate     Validator[T]
	now          func() time.Time
	logger       *zap.Logger
}

// NewTimestampedCache builds a cache for key. validate may be nil.
func NewTimestampedCache[T any](store kvstore.Store, key string, validate Validator[T], opts ...Option) *TimestampedCache[T] {
	o := options{now: time.Now, logger: zap.NewNop(), timestampKey: key + timestampSuffix}
	for _, opt := range opts {
		opt(&o)
	}

	return &TimestampedCache[T]{
		store:        store,
		key:          key,
		timestampKey: o.timestampKey,
		validate:     validate,
		now:          o.now,
		logger:       o.logger,
	}
}

// Key returns the payload key.
func (c *TimestampedCache[T]) Key() string {
	return c.key
}

// Save serializes the payload and stamps it with the current time. A failed
// payload write leaves the previous record untouched.
func (c *TimestampedCache[T]) Save(ctx context.Context, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}

	if err := c.store.Set(ctx, c.key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}

	// Payload first: a failed stamp leaves the new payload under the old time,
	// which only makes it look staler than it is.
	stamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := c.store.Set(ctx, c.timestampKey, stamp); err != nil {
		return fmt.Errorf("save %s: %w", c.timestampKey, err)
	}

	return nil
}

// Load returns the cached payload. Missing keys, invalid JSON and payloads that
// fail validation are all reported as absent.
func (c *TimestampedCache[T]) Load(ctx context.Context) (T, bool) {
	var zero T

	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", c.key), zap.Error(err))
		return zero, false
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return zero, false
	}

	var payload T
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.logger.Debug("discarding corrupt cache record", zap.String("key", c.key), zap.Error(err))
		return zero, false
	}

	if c.validate != nil {
		if err := c.validate(payload); err != nil {
			c.logger.Debug("discarding invalid cache record", zap.String("key", c.key), zap.Error(err))
			return zero, false
		}
	}

	return payload, true
}

// SavedAt returns the time of the last successful save.
func (c *TimestampedCache[T]) SavedAt(ctx context.Context) (time.Time, bool) {
	raw, ok, err := c.store.Get(ctx, c.timestampKey)
	if err != nil || !ok {
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.UnixMilli(ms), true
}

// IsStale reports whether the record is at least maxAge old. A missing or
// unreadable timestamp counts as stale.
func (c *TimestampedCache[T]) IsStale(ctx context.Context, maxAge time.Duration) bool {
	savedAt, ok := c.SavedAt(ctx)
	if !ok {
		return true
	}
	return c.now().UnixMilli()-savedAt.UnixMilli() >= maxAge.Milliseconds()
}

// Clear removes the payload and its timestamp.
func (c *TimestampedCache[T]) Clear(ctx context.Context) error {
	var firstErr error
	for _, key := range []string{c.key, c.timestampKey} {
		if err := c.store.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
