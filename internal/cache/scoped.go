package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/kvstore"
)

type scopedRecord[T any] struct {
	Owner   string `json:"owner"`
	Payload T      `json:"payload"`
}

// ScopedCache is a TimestampedCache whose record remembers the identity that
// saved it. Loading under a different identity behaves like a miss.
type ScopedCache[T any] struct {
	inner  *TimestampedCache[scopedRecord[T]]
	logger *zap.Logger
}

// NewScopedCache builds an identity-scoped cache for key.
func NewScopedCache[T any](store kvstore.Store, key string, validate Validator[T], opts ...Option) *ScopedCache[T] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	recordValidator := func(r scopedRecord[T]) error {
		if strings.TrimSpace(r.Owner) == "" {
			return errors.New("record has no owner")
		}
		if validate != nil {
			return validate(r.Payload)
		}
		return nil
	}

	return &ScopedCache[T]{
		inner:  NewTimestampedCache[scopedRecord[T]](store, key, recordValidator, opts...),
		logger: o.logger,
	}
}

// Key returns the payload key.
func (c *ScopedCache[T]) Key() string {
	return c.inner.Key()
}

// Save stores payload on behalf of owner.
func (c *ScopedCache[T]) Save(ctx context.Context, owner string, payload T) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return fmt.Errorf("save %s: owner must not be empty", c.Key())
	}
	return c.inner.Save(ctx, scopedRecord[T]{Owner: owner, Payload: payload})
}

// Load returns the payload when it was saved by owner (case-insensitive).
func (c *ScopedCache[T]) Load(ctx context.Context, owner string) (T, bool) {
	var zero T

	record, ok := c.inner.Load(ctx)
	if !ok {
		return zero, false
	}

	if err := checkOwner(record.Owner, owner); err != nil {
		c.logger.Debug("scoped cache miss", zap.String("key", c.Key()), zap.Error(err))
		return zero, false
	}

	return record.Payload, true
}

// Owner returns the identity that saved the current record.
func (c *ScopedCache[T]) Owner(ctx context.Context) (string, bool) {
	record, ok := c.inner.Load(ctx)
	if !ok {
		return "", false
	}
	return record.Owner, true
}

// IsStale reports staleness of the record regardless of its owner.
func (c *ScopedCache[T]) IsStale(ctx context.Context, maxAge time.Duration) bool {
	return c.inner.IsStale(ctx, maxAge)
}

// IsStaleFor is IsStale, except that a record owned by someone else is always stale.
func (c *ScopedCache[T]) IsStaleFor(ctx context.Context, owner string, maxAge time.Duration) bool {
	if _, ok := c.Load(ctx, owner); !ok {
		return true
	}
	return c.inner.IsStale(ctx, maxAge)
}

// Clear removes the record and its timestamp.
func (c *ScopedCache[T]) Clear(ctx context.Context) error {
	return c.inner.Clear(ctx)
}

// For binds the cache to one identity so it can be used wherever an unscoped
// cache is expected.
func (c *ScopedCache[T]) For(owner string) *Bound[T] {
	return &Bound[T]{cache: c, owner: owner}
}

// Bound is a ScopedCache view for a single owner.
type Bound[T any] struct {
	cache *ScopedCache[T]
	owner string
}

// Load returns the owner's payload.
func (b *Bound[T]) Load(ctx context.Context) (T, bool) {
	return b.cache.Load(ctx, b.owner)
}

// Save stores the owner's payload.
func (b *Bound[T]) Save(ctx context.Context, payload T) error {
	return b.cache.Save(ctx, b.owner, payload)
}

// IsStale treats another owner's record as stale.
func (b *Bound[T]) IsStale(ctx context.Context, maxAge time.Duration) bool {
	return b.cache.IsStaleFor(ctx, b.owner, maxAge)
}

// Clear removes the record.
func (b *Bound[T]) Clear(ctx context.Context) error {
	return b.cache.Clear(ctx)
}

func checkOwner(stored, current string) error {
	if strings.EqualFold(strings.TrimSpace(stored), strings.TrimSpace(current)) {
		return nil
	}
	return fmt.Errorf("%w: stored %q, current %q", ErrIdentityMismatch, stored, current)
}
