package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/cache"
	"github.com/mamadbah2/storefront/internal/domain/models"
	"github.com/mamadbah2/storefront/internal/fetch"
	"github.com/mamadbah2/storefront/internal/kvstore"
	"github.com/mamadbah2/storefront/internal/scheduler"
	"github.com/mamadbah2/storefront/internal/service/catalog"
)

// SharedNamespace holds the store-wide caches every terminal reads.
const SharedNamespace = "shared"

// Shared refresh domains.
const (
	DomainProducts  = "products"
	DomainCustomers = "customers"
	DomainReceipts  = "receipts"
)

const backgroundRefreshTimeout = 2 * time.Minute

// SessionIdleTimeout is how long a terminal session survives without requests.
const SessionIdleTimeout = 12 * time.Hour

var storeIdentity = models.Identity{Type: models.IdentityStore}

// App is the application context: the persistent store, the shared caches,
// the refresh scheduler and the live terminal sessions.
type App struct {
	store     kvstore.Store
	catalog   *catalog.Service
	refresh   *scheduler.RefreshScheduler
	sessions  *SessionManager
	products  *cache.ProductCache
	customers *cache.CustomerCache
	receipts  *cache.ReceiptsCache
	clock     func() time.Time
	logger    *zap.Logger
}

// Option customizes the application context.
type Option func(*App)

// WithClock overrides the clock of every cache the app creates.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.clock = now }
}

// New builds the application context and registers the shared refresh domains.
func New(store kvstore.Store, catalogSvc *catalog.Service, refresh *scheduler.RefreshScheduler, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		store:    store,
		catalog:  catalogSvc,
		refresh:  refresh,
		sessions: NewSessionManager(),
		clock:    time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	shared := kvstore.Namespaced(store, SharedNamespace)
	a.products = cache.NewProductCache(shared, a.cacheOptions()...)
	a.customers = cache.NewCustomerCache(shared, a.cacheOptions()...)
	a.receipts = cache.NewReceiptsCache(shared, a.cacheOptions()...)

	owner := storeIdentity.Owner()
	domains := []scheduler.Domain{
		{
			Name:    DomainProducts,
			Flush:   a.products.Clear,
			Fetch:   func(ctx context.Context) error { _, err := a.catalog.Products(ctx, a.products, a.silent()); return err },
			IsStale: func(ctx context.Context) bool { return a.products.IsStale(ctx, cache.StalenessWindow) },
		},
		{
			Name:  DomainCustomers,
			Flush: a.customers.Clear,
			Fetch: func(ctx context.Context) error {
				_, err := a.catalog.Customers(ctx, storeIdentity, a.customers.For(owner), a.silent())
				return err
			},
			IsStale: func(ctx context.Context) bool { return a.customers.IsStaleFor(ctx, owner, cache.StalenessWindow) },
		},
		{
			Name:  DomainReceipts,
			Flush: a.receipts.Clear,
			Fetch: func(ctx context.Context) error {
				_, err := a.catalog.Receipts(ctx, storeIdentity, a.receipts.For(owner), a.silent())
				return err
			},
			IsStale: func(ctx context.Context) bool { return a.receipts.IsStaleFor(ctx, owner, cache.StalenessWindow) },
		},
	}
	for _, d := range domains {
		if err := refresh.Register(d); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Session returns the session with the given id, creating it on first use.
// Callers must only pass ids the server issued or derived from a verified token.
func (a *App) Session(id string) *Session {
	id = strings.TrimSpace(id)
	session := a.sessions.GetOrCreate(id, func() *Session {
		return newSession(a, id)
	})
	session.touch(a.clock())
	return session
}

// NewSession opens a session under a fresh random id.
func (a *App) NewSession() *Session {
	return a.Session(uuid.NewString())
}

// ResumeSession returns the live session with id. After a restart a session is
// rebuilt from its namespace when it still holds an unexpired token.
func (a *App) ResumeSession(ctx context.Context, id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	if session, ok := a.sessions.GetSession(id); ok {
		session.touch(a.clock())
		return session, true
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}

	candidate := newSession(a, id)
	if _, ok := candidate.StoredToken(ctx); !ok {
		return nil, false
	}
	return a.Session(id), true
}

// EndSession signs the terminal out, drops its cached data and forgets it.
func (a *App) EndSession(ctx context.Context, id string) {
	if session, ok := a.sessions.ClearSession(id); ok {
		session.close(ctx)
	}
}

// SweepSessions ends every session idle for at least maxIdle and returns how
// many were ended.
func (a *App) SweepSessions(ctx context.Context, maxIdle time.Duration) int {
	cutoff := a.clock().Add(-maxIdle)
	evicted := a.sessions.Evict(func(s *Session) bool {
		return !s.LastSeen().After(cutoff)
	})
	for _, s := range evicted {
		s.close(ctx)
	}
	if len(evicted) > 0 {
		a.logger.Info("idle sessions ended", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Sessions lists the live terminal sessions.
func (a *App) Sessions() []*Session {
	return a.sessions.All()
}

// Products serves the cached product list, loading it on a miss.
func (a *App) Products(ctx context.Context) ([]models.Product, error) {
	return readThrough[[]models.Product](ctx, a, DomainProducts, a.products, func(ctx context.Context, opts fetch.Options) ([]models.Product, error) {
		return a.catalog.Products(ctx, a.products, opts)
	})
}

// Customers serves the full customer list.
func (a *App) Customers(ctx context.Context) ([]models.Customer, error) {
	owner := storeIdentity.Owner()
	return readThrough[[]models.Customer](ctx, a, DomainCustomers, a.customers.For(owner), func(ctx context.Context, opts fetch.Options) ([]models.Customer, error) {
		return a.catalog.Customers(ctx, storeIdentity, a.customers.For(owner), opts)
	})
}

// AllReceipts serves every receipt of the store.
func (a *App) AllReceipts(ctx context.Context) ([]models.Receipt, error) {
	owner := storeIdentity.Owner()
	return readThrough[[]models.Receipt](ctx, a, DomainReceipts, a.receipts.For(owner), func(ctx context.Context, opts fetch.Options) ([]models.Receipt, error) {
		return a.catalog.Receipts(ctx, storeIdentity, a.receipts.For(owner), opts)
	})
}

// Refresh runs a cycle of a shared domain.
func (a *App) Refresh(ctx context.Context, domain string) error {
	return a.refresh.Refresh(ctx, domain)
}

// RecordReceipt upserts a receipt the webhook accepted into the shared receipts
// so reports see it before the next refresh. Nothing is written while the
// shared list is not cached; the next load reads it from the sheet.
func (a *App) RecordReceipt(ctx context.Context, receipt models.Receipt) {
	shared := a.receipts.For(storeIdentity.Owner())
	receipts, ok := shared.Load(ctx)
	if !ok {
		return
	}

	next := append([]models.Receipt(nil), receipts...)
	replaced := false
	for i, r := range next {
		if sameReceipt(r, receipt) {
			next[i] = receipt
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, receipt)
	}

	if err := shared.Save(ctx, next); err != nil {
		a.logger.Warn("failed to record receipt in shared cache", zap.String("receipt_id", receipt.ID), zap.Error(err))
	}
}

// ErrorCount is the number of surfaced fetch failures.
func (a *App) ErrorCount() int64 {
	return a.catalog.Runner().ErrorCount()
}

// Close signs out every session and drops the shared refresh domains.
func (a *App) Close(ctx context.Context) {
	for _, s := range a.sessions.All() {
		s.SignOut(ctx)
	}
	for _, d := range []string{DomainProducts, DomainCustomers, DomainReceipts} {
		a.refresh.Unregister(d)
	}
}

func (a *App) cacheOptions() []cache.Option {
	return []cache.Option{cache.WithClock(a.clock), cache.WithLogger(a.logger.Named("cache"))}
}

func (a *App) silent() fetch.Options {
	opts := a.catalog.Runner().Defaults()
	opts.Silent = true
	return opts
}

type staleCache[T any] interface {
	Load(ctx context.Context) (T, bool)
	IsStale(ctx context.Context, maxAge time.Duration) bool
}

// readThrough returns the cached payload immediately, scheduling a background
// refresh when it is stale. A miss loads synchronously with user-visible errors.
func readThrough[T any](ctx context.Context, a *App, domain string, c staleCache[T], load func(context.Context, fetch.Options) (T, error)) (T, error) {
	if payload, ok := c.Load(ctx); ok {
		if c.IsStale(ctx, cache.StalenessWindow) {
			a.refreshInBackground(domain)
		}
		return payload, nil
	}
	return load(ctx, a.catalog.Runner().Defaults())
}

func (a *App) refreshInBackground(domain string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
		defer cancel()
		if _, err := a.refresh.RefreshIfStale(ctx, domain); err != nil {
			a.logger.Debug("background refresh failed", zap.String("domain", domain), zap.Error(err))
		}
	}()
}

func sameReceipt(a, b models.Receipt) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.BelongsTo(b.CustomerName) && a.Ordinal == b.Ordinal
}
