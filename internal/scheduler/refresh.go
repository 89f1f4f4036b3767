package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mamadbah2/storefront/internal/cache"
)

// ErrUnknownDomain is returned when refreshing a domain that was never registered.
var ErrUnknownDomain = errors.New("unknown refresh domain")

// Domain is one refreshable cache: Flush clears it, Fetch reloads it and
// IsStale reports whether a refresh is due.
type Domain struct {
	Name    string
	Flush   func(ctx context.Context) error
	Fetch   func(ctx context.Context) error
	IsStale func(ctx context.Context) bool
}

type registration struct {
	domain Domain
	entry  cron.EntryID
}

// RefreshScheduler runs a flush-then-fetch cycle per domain on a fixed interval.
// Concurrent cycles for the same domain share one execution.
type RefreshScheduler struct {
	cron     *cron.Cron
	interval time.Duration
	timeout  time.Duration
	group    singleflight.Group
	logger   *zap.Logger

	mu      sync.Mutex
	domains map[string]registration
	started bool
}

// RefreshOption customizes a RefreshScheduler.
type RefreshOption func(*RefreshScheduler)

// WithInterval overrides the tick interval. Tests use it; production keeps the
// staleness window.
func WithInterval(d time.Duration) RefreshOption {
	return func(s *RefreshScheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCycleTimeout bounds a single timer-driven cycle.
func WithCycleTimeout(d time.Duration) RefreshOption {
	return func(s *RefreshScheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRefreshScheduler builds an idle scheduler. Call Start to arm the timer.
func NewRefreshScheduler(logger *zap.Logger, opts ...RefreshOption) *RefreshScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &RefreshScheduler{
		cron:     cron.New(),
		interval: cache.StalenessWindow,
		timeout:  2 * time.Minute,
		logger:   logger,
		domains:  make(map[string]registration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a domain, replacing any previous registration with the same name.
func (s *RefreshScheduler) Register(domain Domain) error {
	if domain.Name == "" || domain.Fetch == nil {
		return fmt.Errorf("register refresh domain %q: name and fetch are required", domain.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.domains[domain.Name]; ok {
		s.cron.Remove(prev.entry)
	}

	name := domain.Name
	entry := s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.tick(name) }))
	s.domains[name] = registration{domain: domain, entry: entry}

	s.logger.Debug("refresh domain registered", zap.String("domain", name), zap.Duration("interval", s.interval))
	return nil
}

// Unregister removes a domain and its timer. Unknown names are ignored.
func (s *RefreshScheduler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reg, ok := s.domains[name]; ok {
		s.cron.Remove(reg.entry)
		delete(s.domains, name)
		s.logger.Debug("refresh domain unregistered", zap.String("domain", name))
	}
}

// Domains lists the registered domain names.
func (s *RefreshScheduler) Domains() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.domains))
	for name := range s.domains {
		names = append(names, name)
	}
	return names
}

// Refresh flushes then fetches the domain. A call arriving while a cycle for
// the same domain is in flight waits for that cycle and returns its result.
func (s *RefreshScheduler) Refresh(ctx context.Context, name string) error {
	domain, ok := s.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, name)
	}

	// The cycle outlives any single waiter, so it must not inherit one waiter's cancellation.
	cycleCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(name, func() (interface{}, error) {
		return nil, s.cycle(cycleCtx, domain)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshIfStale runs a cycle only when the domain reports stale data. It
// returns whether a cycle ran.
func (s *RefreshScheduler) RefreshIfStale(ctx context.Context, name string) (bool, error) {
	domain, ok := s.lookup(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownDomain, name)
	}
	if domain.IsStale != nil && !domain.IsStale(ctx) {
		return false, nil
	}
	return true, s.Refresh(ctx, name)
}

// RefreshAll refreshes every registered domain and joins the failures.
func (s *RefreshScheduler) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, name := range s.Domains() {
		if err := s.Refresh(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Start arms the timers.
func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.logger.Info("starting refresh scheduler", zap.Duration("interval", s.interval))
	s.cron.Start()
}

// Stop tears down the timers and waits for running ticks.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping refresh scheduler")
	<-s.cron.Stop().Done()
}

func (s *RefreshScheduler) tick(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Refresh(ctx, name); err != nil && !errors.Is(err, ErrUnknownDomain) {
		s.logger.Warn("scheduled refresh failed", zap.String("domain", name), zap.Error(err))
	}
}

func (s *RefreshScheduler) cycle(ctx context.Context, domain Domain) error {
	log := s.logger.With(zap.String("domain", domain.Name))

	if domain.Flush != nil {
		if err := domain.Flush(ctx); err != nil {
			log.Warn("flush failed", zap.Error(err))
		}
	}

	if err := domain.Fetch(ctx); err != nil {
		return fmt.Errorf("fetch %s: %w", domain.Name, err)
	}

	log.Debug("refresh cycle completed")
	return nil
}

func (s *RefreshScheduler) lookup(name string) (Domain, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.domains[name]
	return reg.domain, ok
}
