// Package fetch runs network loads that prefer stale cached data over failing.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNetwork wraps transport failures and non-success responses.
	ErrNetwork = errors.New("fetch: network failure")
	// ErrParse wraps malformed CSV or JSON bodies.
	ErrParse = errors.New("fetch: malformed payload")
	// ErrEmptyResult is returned when no valid records survive parsing.
	ErrEmptyResult = errors.New("fetch: no valid records")
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Options tunes a single Run.
type Options struct {
	// Silent suppresses the user-facing alert when the load finally fails.
	Silent     bool
	MaxRetries int
	// RetryDelay is applied unchanged before every retry.
	RetryDelay time.Duration
}

// DefaultOptions returns three retries one second apart.
func DefaultOptions() Options {
	return Options{MaxRetries: DefaultMaxRetries, RetryDelay: DefaultRetryDelay}
}

// FetchFunc performs the network call and returns the raw body.
type FetchFunc func(ctx context.Context) ([]byte, error)

// ParseFunc turns a raw body into a payload.
type ParseFunc[T any] func(body []byte) (T, error)

// Source describes one loadable resource.
type Source[T any] struct {
	Name  string
	Fetch FetchFunc
	Parse ParseFunc[T]
	// Validate rejects payloads that must not replace the cache, typically empty lists.
	Validate func(T) error
}

// Cache is the write-through target and fallback of a Run.
type Cache[T any] interface {
	Load(ctx context.Context) (T, bool)
	Save(ctx context.Context, payload T) error
}

// Alerter surfaces a final failure to the operator.
type Alerter interface {
	Alert(ctx context.Context, source string, err error)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(ctx context.Context, source string, err error)

// Alert calls f.
func (f AlerterFunc) Alert(ctx context.Context, source string, err error) {
	f(ctx, source, err)
}

// Runner holds what is shared by every Run: logging, the sleeper and the
// user-visible error count.
type Runner struct {
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	alerter  Alerter
	defaults Options
	errors   atomic.Int64
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithSleeper replaces the context-aware timer sleep.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *Runner) { r.sleep = sleep }
}

// WithAlerter registers the alert sink for non-silent failures.
func WithAlerter(alerter Alerter) RunnerOption {
	return func(r *Runner) { r.alerter = alerter }
}

// WithDefaults replaces the default retry policy.
func WithDefaults(opts Options) RunnerOption {
	return func(r *Runner) { r.defaults = opts }
}

// NewRunner builds a Runner.
func NewRunner(logger *zap.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		logger:   logger,
		sleep:    sleepContext,
		defaults: DefaultOptions(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Defaults returns the configured retry policy.
func (r *Runner) Defaults() Options {
	return r.defaults
}

// ErrorCount is the number of failures surfaced to users.
func (r *Runner) ErrorCount() int64 {
	return r.errors.Load()
}

// Run loads src. On success the payload is written through to c before it is
// returned. On failure a cached payload, when present, is returned instead of
// the error. Without a cache the load is attempted opts.MaxRetries+1 times with
// a fixed delay between attempts. c may be nil.
func Run[T any](ctx context.Context, r *Runner, src Source[T], c Cache[T], opts Options) (T, error) {
	var zero T
	logger := r.logger.With(zap.String("source", src.Name))

	var lastErr error
	attempts := 0
	for {
		attempts++
		payload, err := attempt(ctx, src)
		if err == nil {
			if c != nil {
				if saveErr := c.Save(ctx, payload); saveErr != nil {
					logger.Warn("cache write failed, serving fresh data anyway", zap.Error(saveErr))
				}
			}
			return payload, nil
		}
		lastErr = err

		if c != nil {
			if cached, ok := c.Load(ctx); ok {
				logger.Warn("fetch failed, serving cached data", zap.Int("attempt", attempts), zap.Error(err))
				return cached, nil
			}
		}

		if attempts > opts.MaxRetries {
			break
		}

		logger.Debug("fetch failed, retrying", zap.Int("attempt", attempts), zap.Duration("delay", opts.RetryDelay), zap.Error(err))
		if sleepErr := r.sleep(ctx, opts.RetryDelay); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}

	finalErr := fmt.Errorf("load %s after %d attempts: %w", src.Name, attempts, lastErr)
	if opts.Silent {
		logger.Warn("background load failed", zap.Error(finalErr))
		return zero, finalErr
	}

	r.errors.Add(1)
	logger.Error("load failed", zap.Error(finalErr))
	if r.alerter != nil {
		r.alerter.Alert(ctx, src.Name, finalErr)
	}
	return zero, finalErr
}

func attempt[T any](ctx context.Context, src Source[T]) (T, error) {
	var zero T

	body, err := src.Fetch(ctx)
	if err != nil {
		return zero, classify(err, ErrNetwork)
	}

	payload, err := src.Parse(body)
	if err != nil {
		return zero, classify(err, ErrParse)
	}

	if src.Validate != nil {
		if err := src.Validate(payload); err != nil {
			return zero, classify(err, ErrEmptyResult)
		}
	}

	return payload, nil
}

// classify keeps errors that already carry a taxonomy sentinel and wraps the rest.
func classify(err, fallback error) error {
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrParse) || errors.Is(err, ErrEmptyResult) {
		return err
	}
	return fmt.Errorf("%w: %w", fallback, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
